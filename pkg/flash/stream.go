package flash

import "bytes"

// maxLineLength caps a single line of tool output.
const maxLineLength = 1 << 20

// scanLines is a bufio.SplitFunc that ends lines at "\n", "\r\n" or a lone
// "\r". The tool redraws its progress bar with carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// Need one more byte to tell "\r\n" from "\r".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
