package clicmds

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
	"golang.org/x/term"
)

var menuChoices = map[string]trawl.InterruptChoice{
	"r": trawl.InterruptResume,
	"s": trawl.InterruptSkip,
	"g": trawl.InterruptReport,
	"q": trawl.InterruptQuit,
}

// StdinMenu asks the operator what to do after ctrl-c when stdin is a
// terminal, otherwise the report is generated right away
func StdinMenu() trawl.InterruptionPolicy {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return trawl.ReportOnInterrupt
	}
	return NewMenu(os.Stdin, os.Stderr)
}

// NewMenu reads choices line by line from in and prompts on out
func NewMenu(in io.Reader, out io.Writer) trawl.InterruptionPolicy {
	reader := bufio.NewReader(in)
	return func(ictx *trawl.InterruptionContext) trawl.InterruptChoice {
		fmt.Fprintf(out, "\nAttack of %s interrupted after %d resources (%s)\n", ictx.Module, ictx.Processed, ictx.Elapsed.Round(time.Second))
		if len(ictx.Remaining) > 0 {
			fmt.Fprintf(out, "Modules left: %s\n", strings.Join(ictx.Remaining, ", "))
		}
		for {
			fmt.Fprint(out, "[r]esume, [s]kip module, [g]enerate report, [q]uit without report: ")
			line, err := reader.ReadString('\n')
			if choice, ok := menuChoices[strings.ToLower(strings.TrimSpace(line))]; ok {
				log.Info().Str("choice", trawl.InterruptChoiceMap[choice]).Msg("operator choice")
				return choice
			}
			if err != nil {
				log.Warn().Err(err).Msg("no operator input, generating report")
				return trawl.InterruptReport
			}
		}
	}
}
