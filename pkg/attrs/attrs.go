// Package attrs reads values back out of slog-style alternating
// key/value argument lists.
package attrs

// String returns the value paired with key in args, where args follows the
// slog convention [key1, value1, key2, value2, ...]. Keys that are not
// strings are skipped. It returns "" when the key is absent or its value is
// not a string.
func String(args []any, key string) string {
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := args[i+1].(string); ok {
			return v
		}
	}
	return ""
}
