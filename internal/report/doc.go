// Package report writes mirror job reports and ledger exports.
//
// Report writers:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown for documentation and sharing
//
// Every writer also renders the comparison of two jobs of one host.
// Exports turn a ledger into a URL list, a JSON array or a CSV table.
package report
