package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/bot"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))

	standingsBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#874BFD")).
				Padding(1, 2)
)

// safety net for boards that never let anyone finish
const maxSimulatedMoves = 5000

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play an all-bot game in the terminal",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().Int("bots", 3, "number of bots (2-4)")
	simulateCmd.Flags().Bool("verbose", false, "print every square walked")
	simulateCmd.Flags().Duration("delay", 0, "pause between moves")
	rootCmd.AddCommand(simulateCmd)
}

// printSink shows dice and walks when --verbose is set.
type printSink struct {
	out     io.Writer
	names   map[string]string
	verbose bool
}

func (p printSink) DiceShown(playerID string, roll int) {
	if p.verbose {
		fmt.Fprintf(p.out, "  %s rolls %d\n", p.names[playerID], roll)
	}
}

func (p printSink) Step(playerID string, square int) {
	if p.verbose {
		fmt.Fprintln(p.out, mutedStyle.Render(fmt.Sprintf("    .. %d", square)))
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("bots")
	verbose, _ := cmd.Flags().GetBool("verbose")
	delay, _ := cmd.Flags().GetDuration("delay")
	if n < engine.MinPlayers || n > engine.MaxPlayers {
		return fmt.Errorf("--bots must be between %d and %d", engine.MinPlayers, engine.MaxPlayers)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	board, err := cfg.Board()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sess := engine.NewSession(board, cfg.Rules())
	for i := 0; i < n; i++ {
		if _, err := sess.AddBot(); err != nil {
			return err
		}
	}

	styled := map[string]string{}
	for _, p := range sess.Players() {
		styled[p.ID] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Color)).Render(p.Name)
	}

	var queue []bot.Continuation
	sched := bot.NewScheduler(bot.Options{
		MaxRolls: cfg.Bot.MaxRolls,
		Dice:     engine.RandomDice{},
		After: func(_ time.Duration, c bot.Continuation) {
			queue = append(queue, c)
		},
		Sink:   printSink{out: out, names: styled, verbose: verbose},
		Logger: log,
	})

	if err := sess.Start(); err != nil {
		return err
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Snakes & Ladders: %d bots", n)))

	sched.Observe(sess)
	for len(queue) > 0 && sess.Status() == engine.StatusPlaying {
		next := queue[0]
		queue = queue[1:]
		for _, ev := range sched.Handle(sess, next) {
			printEvent(out, styled, ev)
		}
		if sess.MoveCount() >= maxSimulatedMoves {
			log.Warn("simulation move limit reached", zap.Int("moves", sess.MoveCount()))
			break
		}
		if delay > 0 && next.Stage == bot.StageSettle {
			time.Sleep(delay)
		}
		sched.Observe(sess)
	}

	fmt.Fprintln(out, standingsBoxStyle.Render(standings(sess, styled)))
	return nil
}

func printEvent(out io.Writer, names map[string]string, ev engine.Event) {
	switch ev.Type {
	case engine.EvtPlayerMoved:
		m := ev.Move
		line := fmt.Sprintf("%s rolled %d: %d -> %d", names[ev.PlayerID], m.Roll, m.From, m.To)
		if m.Kind != engine.KindNormal {
			line += " (" + string(m.Kind) + ")"
		}
		fmt.Fprintln(out, line)
	case engine.EvtPlayerBumped:
		c := ev.Collision
		fmt.Fprintf(out, "  %s bumped back %d -> %d\n", names[c.PlayerID], c.From, c.To)
	case engine.EvtBonusRollGranted:
		fmt.Fprintf(out, "  %s earns a bonus roll\n", names[ev.PlayerID])
	case engine.EvtGameCompleted:
		fmt.Fprintf(out, "%s wins!\n", names[ev.PlayerID])
	}
}

func standings(sess *engine.Session, names map[string]string) string {
	moves := map[string]int{}
	for _, m := range sess.History() {
		moves[m.PlayerID]++
	}
	winner, _ := sess.Winner()

	var b strings.Builder
	b.WriteString("Final standings\n")
	for _, p := range sess.Players() {
		mark := " "
		if p.ID == winner.ID {
			mark = "*"
		}
		fmt.Fprintf(&b, "\n%s %-12s square %3d  moves %d", mark, names[p.ID], p.Position, moves[p.ID])
	}
	return b.String()
}
