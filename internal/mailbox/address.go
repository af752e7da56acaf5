package mailbox

import "strings"

// FallbackName is used when a sender carries no display name.
const FallbackName = "there"

// Sender is the parsed form of a From header.
type Sender struct {
	Name    string
	Address string

	// Matched is true when the input had the "Name <addr>" shape.
	Matched bool
}

// ParseSender splits "Name <addr>" into its parts. Name is the trimmed
// text before the first '<' and Address the text up to the following
// '>'. When the '>' is missing the name is still taken and Address is
// the whole trimmed input. Input without any '<' is treated as a bare
// address with the name "there".
func ParseSender(raw string) Sender {
	open := strings.IndexByte(raw, '<')
	if open < 0 {
		return Sender{
			Name:    FallbackName,
			Address: strings.TrimSpace(raw),
		}
	}

	name := strings.TrimSpace(raw[:open])
	if n := strings.IndexByte(raw[open+1:], '>'); n >= 0 {
		return Sender{
			Name:    name,
			Address: raw[open+1 : open+1+n],
			Matched: true,
		}
	}
	return Sender{
		Name:    name,
		Address: strings.TrimSpace(raw),
	}
}

// GreetingName returns the name to address the sender by.
func (s Sender) GreetingName() string {
	if s.Name == "" {
		return FallbackName
	}
	return s.Name
}
