package suoserial

import "strings"

// MaxArgs is the maximum number of arguments of a command line.
const MaxArgs = 10

// Tokenize splits a line into at most maxArgs arguments. Runs of spaces
// separate arguments and trailing spaces are ignored, a leading space
// yields an empty first argument. Text beyond maxArgs is dropped. The
// arguments are substrings of line.
func Tokenize(line string, maxArgs int) []string {
	var args []string
	for n := 0; n < len(line) && len(args) < maxArgs; {
		end := strings.IndexByte(line[n:], ' ')
		if end < 0 {
			args = append(args, line[n:])
			break
		}
		args = append(args, line[n:n+end])
		n += end + 1
		for n < len(line) && line[n] == ' ' {
			n++
		}
	}
	return args
}

// tokenizeRequest splits a sub-protocol line. A line ending in a space
// after OFFSET and SIZE carries an empty HEXDATA argument.
func tokenizeRequest(line string) []string {
	args := Tokenize(line, MaxArgs)
	if len(args) == 3 && strings.HasSuffix(line, " ") {
		args = append(args, "")
	}
	return args
}
