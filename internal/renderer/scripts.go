package renderer

// anchorsScript lists the resolved href of every anchor element.
const anchorsScript = `() => Array.from(document.querySelectorAll('a')).map(a => a.href)`

// scrollScript scrolls down by step pixels every interval milliseconds
// until the bottom of the body is reached or maxSteps is exhausted, then
// waits 100ms for trailing requests.
const scrollScript = `(step, interval, maxSteps) => new Promise((resolve) => {
	window.scrollTo(0, 0);
	let total = 0;
	let steps = 0;
	const timer = setInterval(() => {
		window.scrollBy(0, step);
		total += step;
		steps++;
		const height = document.body ? document.body.scrollHeight : 0;
		if (total >= height || steps >= maxSteps) {
			clearInterval(timer);
			setTimeout(resolve, 100);
		}
	}, interval);
})`

// documentScript captures the current URL, title and outer HTML.
const documentScript = `() => ({
	url: location.href,
	title: document.title || '',
	html: document.documentElement ? document.documentElement.outerHTML : ''
})`
