// internal/service/alphabet.go
package service

import "sort"

// Alphabet is the set of commands the device firmware understands
type Alphabet map[string]struct{}

// NewAlphabet builds an alphabet from the given commands
func NewAlphabet(commands []string) Alphabet {
	a := make(Alphabet, len(commands))
	for _, cmd := range commands {
		a[cmd] = struct{}{}
	}
	return a
}

// Contains reports whether cmd is a legal command
func (a Alphabet) Contains(cmd string) bool {
	_, ok := a[cmd]
	return ok
}

// Commands returns the commands in sorted order
func (a Alphabet) Commands() []string {
	commands := make([]string, 0, len(a))
	for cmd := range a {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}
