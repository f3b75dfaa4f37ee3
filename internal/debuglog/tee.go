package debuglog

// Tee combines multiple UiOps into one that forwards every Print call
// to each of them and is enabled whenever any of them is, so a single
// debug stream can feed both a structured logger and a live transport
// (e.g. a debug websocket) without the rest of the core knowing how
// many sinks are attached.
func Tee(ops ...UiOps) UiOps {
	return UiOps{
		Print: func(level Level, category, message string) {
			for _, o := range ops {
				if o.Print != nil {
					o.Print(level, category, message)
				}
			}
		},
		IsEnabled: func(level Level, category string) bool {
			for _, o := range ops {
				if o.IsEnabled == nil || o.IsEnabled(level, category) {
					return true
				}
			}
			return false
		},
	}
}
