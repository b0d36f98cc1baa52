package shell

import "fmt"

// commandHelp describes one shell command.
type commandHelp struct {
	Name      string
	ShortDesc string
	Syntax    string
	Example   string
}

var commandHelps = []commandHelp{
	{"open", "Open a photo library", "open <dir>", `open "~/Pictures/Summer 2023"`},
	{"ls", "List photos matching the current filters", "ls", "ls"},
	{"show", "Show the current photo, or jump to one", "show [path]", "show trip/beach.jpg"},
	{"next", "Move to the next photo", "next", "next"},
	{"prev", "Move to the previous photo", "prev", "prev"},
	{"set", "Edit a field of the current photo; no value clears it", "set <field> [value]", `set people "Alice, Bob"`},
	{"filter", "Set a filter; no arguments shows the active filters", "filter [field] [text]", "filter location paris"},
	{"clear", "Reset all filters", "clear", "clear"},
	{"export", "Copy the matching photos to the export directory", "export", "export"},
	{"help", "Show help", "help [command]", "help set"},
	{"quit", "Exit the shell", "quit", "quit"},
}

func (s *Shell) handleHelp(args []string) error {
	switch len(args) {
	case 0:
		fmt.Fprintln(s.out, "Available commands:")
		for _, h := range commandHelps {
			fmt.Fprintf(s.out, "  %-8s %s\n", h.Name, h.ShortDesc)
		}
		fmt.Fprintln(s.out, "\nFields: people, location, date, group, comment")
		fmt.Fprintln(s.out, "Use 'help <command>' for more information about a specific command.")
		return nil
	case 1:
		for _, h := range commandHelps {
			if h.Name == args[0] {
				fmt.Fprintf(s.out, "Syntax: %s\nDescription: %s\nExample: %s\n", h.Syntax, h.ShortDesc, h.Example)
				return nil
			}
		}
		return fmt.Errorf("unknown command: %s", args[0])
	default:
		return fmt.Errorf("usage: help [command]")
	}
}
