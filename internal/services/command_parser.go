package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionEdit    Action = "EDIT"
)

// Command is one instruction from an approval reply. Index is 1-based.
type Command struct {
	Action      Action
	Index       int
	Instruction string
}

func (c Command) String() string {
	if c.Action == ActionEdit {
		return fmt.Sprintf("%s %d: %s", c.Action, c.Index, c.Instruction)
	}
	return fmt.Sprintf("%s %d", c.Action, c.Index)
}

var commandLine = regexp.MustCompile(`(?i)^\s*(APPROVE|REJECT|EDIT)\s+(\p{Nd}+)(?::\s*(.*))?\s*$`)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// ParseCommands extracts commands from a reply body, one per line, in order.
// Quoted text, greetings and signatures simply fail to match.
func ParseCommands(body string) []Command {
	var cmds []Command
	for _, line := range strings.Split(lineBreaks.Replace(body), "\n") {
		m := commandLine.FindStringSubmatch(strings.TrimSpace(asciiSpaces(line)))
		if m == nil {
			continue
		}
		cmds = append(cmds, Command{
			Action:      Action(strings.ToUpper(m[1])),
			Index:       parseIndex(m[2]),
			Instruction: strings.TrimSpace(m[3]),
		})
	}
	return cmds
}

// asciiSpaces folds Unicode spaces such as the no-break spaces HTML mail
// clients insert into plain ASCII spaces.
func asciiSpaces(line string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, line)
}

// parseIndex accepts any Unicode decimal digits and saturates at
// math.MaxInt, which no campaign can reach.
func parseIndex(digits string) int {
	var b strings.Builder
	for _, r := range digits {
		b.WriteByte(byte('0' + digitValue(r)))
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return math.MaxInt
	}
	return n
}

// digitValue relies on every Nd block being runs of ten starting at zero.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for unicode.Is(unicode.Nd, start-1) {
		start--
	}
	return int(r-start) % 10
}
