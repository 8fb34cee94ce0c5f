package host

import "strings"

// event is either a prompt or a response line.
type event struct {
	prompt bool
	line   string
}

// scanner splits device output into events. The prompt '>' carries no
// terminator, so it is recognized at the start of a line, once.
type scanner struct {
	cur         []byte
	afterPrompt bool
}

func (s *scanner) feed(p []byte, emit func(event)) {
	for _, c := range p {
		switch {
		case c == '\r' || c == '\n':
			if len(s.cur) > 0 {
				emit(event{line: string(s.cur)})
				s.cur = s.cur[:0]
			}
			s.afterPrompt = false
		case c == '>' && len(s.cur) == 0 && !s.afterPrompt:
			s.afterPrompt = true
			emit(event{prompt: true})
		default:
			s.cur = append(s.cur, c)
		}
	}
}

const infoPrefix = "INFO "

func isInfo(line string) (string, bool) {
	if strings.HasPrefix(line, infoPrefix) {
		return line[len(infoPrefix):], true
	}
	return "", false
}

func isError(line string) bool {
	return strings.HasPrefix(line, "ERROR")
}
