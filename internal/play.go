package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gugu/cmiuc-client/internal/game"
)

var ErrUnknownCommand = errors.New("unknown command")

const (
	commandPick = "pick"
	commandView = "view"
)

type command struct {
	name      string
	ownerID   int64
	cardIndex int
}

// parseCommand reads "pick <memberId> <index>" or "view".
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}

	switch fields[0] {
	case commandView:
		return command{name: commandView}, nil
	case commandPick:
		if len(fields) != 3 {
			return command{}, fmt.Errorf("%w: usage pick <memberId> <index>", ErrUnknownCommand)
		}

		ownerID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return command{}, fmt.Errorf("%w: member id %q", ErrUnknownCommand, fields[1])
		}

		cardIndex, err := strconv.Atoi(fields[2])
		if err != nil {
			return command{}, fmt.Errorf("%w: card index %q", ErrUnknownCommand, fields[2])
		}

		return command{name: commandPick, ownerID: ownerID, cardIndex: cardIndex}, nil
	default:
		return command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}

// RunGame shows gameID as memberID and runs the commands read from in. A
// zero memberID means the member of the stored token.
func (that *App) RunGame(ctx context.Context, gameID string, memberID int64, in io.Reader, out io.Writer) error {
	log := that.logger.With("component", "app", "method", "RunGame")

	client, err := that.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("could not close channel", "error", err)
		}
	}()

	if memberID == 0 {
		memberID = that.credentials.MemberID()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controller := game.NewController(that.logger, client, gameID, memberID)

	runErrs := make(chan error, 1)
	go func() { runErrs <- controller.Run(ctx) }()

	statusErrs := that.serveStatus(ctx, nil, controller)
	lines := readLines(ctx, in)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err = <-runErrs:
			return err
		case <-client.Done():
			return client.Err()
		case err = <-statusErrs:
			return fmt.Errorf("status server error: %w", err)
		case view := <-controller.Updates():
			fmt.Fprintln(out, FormatView(view))
		case line, ok := <-lines:
			if !ok {
				cancel()
				return <-runErrs
			}

			that.execute(ctx, controller, line, out)
		}
	}
}

func (that *App) execute(ctx context.Context, controller *game.Controller, line string, out io.Writer) {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}

	switch cmd.name {
	case commandView:
		view, err := controller.View(ctx)
		if err != nil {
			fmt.Fprintln(out, err)
			return
		}
		fmt.Fprintln(out, FormatView(view))
	case commandPick:
		if _, err = controller.Pick(ctx, cmd.ownerID, cmd.cardIndex); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

// FormatView renders one status line of the board.
func FormatView(view game.View) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "[%s %ds] round %d turn %d", view.GameState, view.Remaining, view.Round, view.CurTurn)
	fmt.Fprintf(&builder, " table %v", view.TableCard)

	for _, player := range view.Players {
		fmt.Fprintf(&builder, " | %d:%d cards", player.MemberID, len(player.Cards))
	}

	return builder.String()
}
