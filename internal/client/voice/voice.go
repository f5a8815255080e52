// Package voice matches transcribed speech against the registered command
// patterns and produces typed actions: start/stop a timer, add an item to a
// list note. The relay transcribes; this package only parses.
package voice

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Action is a parsed voice command.
type Action interface {
	isAction()
}

// StartTimer starts a countdown timer.
type StartTimer struct {
	Name     string
	Duration time.Duration
}

// StopTimer dismisses a timer. An empty Name means "whichever timer is
// alerting right now".
type StopTimer struct {
	Name string
}

// AddToList appends an item to the named list note.
type AddToList struct {
	Item string
	List string
}

func (StartTimer) isAction() {}
func (StopTimer) isAction()  {}
func (AddToList) isAction()  {}

// Command is one registered voice command.
type Command struct {
	Name     string
	Help     string
	Examples []string

	patterns []*regexp.Regexp
	build    func(params map[string]string) (Action, error)
}

var commands = []Command{
	{
		Name: "add_to_list",
		Help: "Add item to a list (groceries, shopping, etc)",
		Examples: []string{
			"add cheese to groceries",
			"add milk to shopping list",
			"put eggs on grocery list",
		},
		patterns: compile(
			`add (?P<item>.+?) to (?P<list>[\w\s]+?)(?:\s+list)?$`,
			`put (?P<item>.+?) on (?P<list>[\w\s]+?)(?:\s+list)?$`,
		),
		build: func(params map[string]string) (Action, error) {
			return AddToList{
				Item: strings.TrimSpace(params["item"]),
				List: strings.TrimSpace(params["list"]),
			}, nil
		},
	},
	{
		Name: "timer",
		Help: "Start a countdown timer",
		Examples: []string{
			"start 10 minute timer called water",
			"set a 2 hour timer for laundry",
			"timer 30 seconds",
		},
		patterns: compile(
			`(?:start|set)(?: a)? (?P<duration>\d+) ?(?P<unit>second|minute|hour)s?(?: timer)?(?: (?:called|named|for) (?P<name>.+))?$`,
			`timer (?:for )?(?P<duration>\d+) ?(?P<unit>second|minute|hour)s?$`,
		),
		build: func(params map[string]string) (Action, error) {
			n := 0
			if _, err := fmt.Sscanf(params["duration"], "%d", &n); err != nil || n <= 0 {
				return nil, fmt.Errorf("bad timer duration %q", params["duration"])
			}
			var unit time.Duration
			switch params["unit"] {
			case "second":
				unit = time.Second
			case "minute":
				unit = time.Minute
			case "hour":
				unit = time.Hour
			default:
				return nil, fmt.Errorf("bad timer unit %q", params["unit"])
			}
			return StartTimer{
				Name:     strings.TrimSpace(params["name"]),
				Duration: time.Duration(n) * unit,
			}, nil
		},
	},
	{
		Name: "stop_timer",
		Help: "Stop or cancel a timer",
		Examples: []string{
			"stop",
			"stop timer",
			"cancel water timer",
			"dismiss timer",
		},
		patterns: compile(
			// Bare "stop", for when a timer is alerting.
			`^stop$`,
			`(?:stop|cancel|dismiss|clear)(?: the)?(?: (?P<name>.+?))? timer$`,
			`timer (?:stop|cancel|dismiss|off)$`,
		),
		build: func(params map[string]string) (Action, error) {
			return StopTimer{Name: strings.TrimSpace(params["name"])}, nil
		},
	},
}

// Commands returns the registered commands, for help surfaces.
func Commands() []Command {
	return commands
}

// Parse matches text against the registered commands, first match wins.
// Unmatched text returns ok == false; it is not an error.
func Parse(text string) (Action, bool) {
	text = strings.TrimSpace(strings.ToLower(text))

	for _, cmd := range commands {
		for _, pattern := range cmd.patterns {
			m := pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			params := make(map[string]string)
			for i, name := range pattern.SubexpNames() {
				if name != "" && i < len(m) {
					params[name] = m[i]
				}
			}
			action, err := cmd.build(params)
			if err != nil {
				continue
			}
			return action, true
		}
	}
	return nil, false
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
