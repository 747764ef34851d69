package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/chat"
	"github.com/gugu/cmiuc-client/internal/entity"
)

// RunChat joins roomID, prints every message to out and sends every line of
// in until in ends or ctx is done.
func (that *App) RunChat(ctx context.Context, roomID, sender string, in io.Reader, out io.Writer) error {
	log := that.logger.With("component", "app", "method", "RunChat")

	client, err := that.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("could not close channel", "error", err)
		}
	}()

	room := chat.NewRoom(that.logger, client, roomID, sender)
	room.OnMessage(func(message entity.ChatMessage) {
		fmt.Fprintln(out, room.Format(message))
	})

	if err = room.Join(); err != nil {
		return err
	}
	defer func() {
		if err := room.Leave(); err != nil {
			log.Error("could not leave room", "error", err)
		}
	}()

	statusErrs := that.serveStatus(ctx, room, nil)
	lines := readLines(ctx, in)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return client.Err()
		case err = <-statusErrs:
			return fmt.Errorf("status server error: %w", err)
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if _, err = room.Send(ctx, line); err != nil {
				if errors.Is(err, apperror.ErrEmptyMessage) {
					continue
				}
				return err
			}
		}
	}
}

// readLines feeds the lines of in to the returned channel until in ends.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
