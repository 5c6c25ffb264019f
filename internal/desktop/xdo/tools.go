package xdo

// RequiredTools are the X11 helpers the backend shells out to.
var RequiredTools = []string{"xdotool", "xclip", "import"}

// MissingTools returns the entries of RequiredTools lookPath cannot find.
func MissingTools(lookPath func(string) (string, error)) []string {
	var missing []string
	for _, tool := range RequiredTools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}
