package ewvm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadProgram parses the textual form produced by Export back into a Program. It accepts any
// mnemonic; whether the machine knows it is checked only at execution time.
func ReadProgram(rd io.Reader) (Program, error) {
	var program Program
	scanner := bufio.NewScanner(rd)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		element, err := parseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if element != nil {
			program = append(program, element)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return program, nil
}

func parseLine(line string) (Element, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, nil
	case strings.HasPrefix(line, "//"):
		return Comment{Text: strings.TrimSpace(line[2:])}, nil
	case strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t\""):
		return Label{Name: line[:len(line)-1]}, nil
	}
	words, err := splitWords(line)
	if err != nil {
		return nil, err
	}
	instruction := Instruction{Mnemonic: strings.ToUpper(words[0])}
	for _, word := range words[1:] {
		arg, err := parseArgument(word)
		if err != nil {
			return nil, err
		}
		instruction.Args = append(instruction.Args, arg)
	}
	return instruction, nil
}

// splitWords splits on blanks, keeping double-quoted strings (with escapes) whole.
func splitWords(line string) ([]string, error) {
	var words []string
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			j := i + 1
			for ; j < len(line) && line[j] != '"'; j++ {
				if line[j] == '\\' {
					j++
				}
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string in %q", line)
			}
			words = append(words, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			words = append(words, line[i:j])
			i = j
		}
	}
	return words, nil
}

func parseArgument(word string) (Argument, error) {
	if strings.HasPrefix(word, "\"") {
		s, err := strconv.Unquote(word)
		if err != nil {
			return nil, fmt.Errorf("bad string %s: %w", word, err)
		}
		return s, nil
	}
	if v, err := strconv.Atoi(word); err == nil {
		return v, nil
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return f, nil
	}
	if isLabelName(word) {
		return Label{Name: word}, nil
	}
	return nil, fmt.Errorf("cannot parse argument %q", word)
}

func isLabelName(word string) bool {
	for i := 0; i < len(word); i++ {
		c := word[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return false
		}
	}
	return word != ""
}
