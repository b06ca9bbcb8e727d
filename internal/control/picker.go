package control

import (
	"context"
	"encoding/json"
	"slices"
)

// allowedProperties are the dialog properties a client may request.
var allowedProperties = map[string]bool{
	"openFile":                true,
	"openDirectory":           true,
	"multiSelections":         true,
	"showHiddenFiles":         true,
	"createDirectory":         true,
	"promptToCreate":          true,
	"noResolveAliases":        true,
	"treatPackageAsDirectory": true,
	"dontAddToRecent":         true,
}

// defaultProperties are used when the client sends none.
var defaultProperties = []string{"openDirectory", "createDirectory"}

// dialogProperties filters raw to the allowed properties. Anything that
// is not a JSON array of strings falls back to the defaults.
func dialogProperties(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return slices.Clone(defaultProperties)
	}
	var requested []any
	if err := json.Unmarshal(raw, &requested); err != nil || requested == nil {
		return slices.Clone(defaultProperties)
	}

	props := make([]string, 0, len(requested))
	for _, r := range requested {
		if s, ok := r.(string); ok && allowedProperties[s] {
			props = append(props, s)
		}
	}
	return props
}

// Picker asks the operator for a directory. ok is false when the operator
// cancelled.
type Picker interface {
	PickDirectory(ctx context.Context, properties []string) (path string, ok bool, err error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, properties []string) (string, bool, error)

// PickDirectory implements Picker.
func (f PickerFunc) PickDirectory(ctx context.Context, properties []string) (string, bool, error) {
	return f(ctx, properties)
}

// CancelPicker always cancels.
type CancelPicker struct{}

// PickDirectory implements Picker.
func (CancelPicker) PickDirectory(context.Context, []string) (string, bool, error) {
	return "", false, nil
}

// RootPicker answers directory requests with a fixed directory. It is the
// non-interactive picker of the control server.
type RootPicker struct {
	Root string
}

// PickDirectory returns Root when a directory was asked for and cancels
// otherwise.
func (p RootPicker) PickDirectory(_ context.Context, properties []string) (string, bool, error) {
	if p.Root == "" {
		return "", false, nil
	}
	if slices.Contains(properties, "openDirectory") || slices.Contains(properties, "createDirectory") {
		return p.Root, true, nil
	}
	return "", false, nil
}
