package sizes

// Defaults returns the built-in image_sizes table used when the
// configuration does not declare one. A fresh map is returned each call.
func Defaults() map[string]any {
	return map[string]any{
		"thumbnail": map[string]any{
			"width":  150,
			"height": 150,
			"crop":   true,
		},
		"medium": map[string]any{
			"width":  400,
			"height": 400,
		},
		"medium_large": map[string]any{
			"width":  768,
			"height": 0,
			"srcset": []any{0.5, 2},
		},
		"large": map[string]any{
			"width":      1024,
			"height":     1024,
			"srcset":     []any{0.5, 2},
			"show_in_ui": true,
		},
	}
}
