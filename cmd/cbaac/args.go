package main

import "strings"

// reorderInterspersedFlags moves flags ahead of positionals so the standard
// flag package accepts "cbaac evaluate policy.yaml manifest.json --json".
// valueFlags names the flags that consume the following argument.
func reorderInterspersedFlags(arguments []string, valueFlags map[string]bool) []string {
	flags := make([]string, 0, len(arguments))
	positionals := make([]string, 0, len(arguments))

	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		switch {
		case argument == "--":
			return append(append(flags, "--"), append(positionals, arguments[index+1:]...)...)
		case len(argument) < 2 || !strings.HasPrefix(argument, "-"):
			positionals = append(positionals, argument)
		default:
			flags = append(flags, argument)
			if strings.Contains(argument, "=") || !valueFlags[strings.TrimLeft(argument, "-")] {
				continue
			}
			if index+1 < len(arguments) {
				index++
				flags = append(flags, arguments[index])
			}
		}
	}
	return append(flags, positionals...)
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
