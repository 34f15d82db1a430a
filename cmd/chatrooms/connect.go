package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/devaloi/chatrooms/internal/chatapi"
	"github.com/devaloi/chatrooms/internal/domain"
)

var connectCmd = &cobra.Command{
	Use:   "connect ROOM_ID USERNAME",
	Short: "Join a room and chat from the terminal",
	Long:  "Join a room, print every message it carries, and send each line read from stdin.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := c.ConnectRoomSocket(args[0], args[1])
		defer s.Close()
		if err := s.Wait(ctx); err != nil {
			return err
		}
		log.Info().Str("url", s.URL()).Msg("connected")

		go sendLines(cmd.InOrStdin(), s, args[1])

		out := cmd.OutOrStdout()
		for {
			select {
			case msg, ok := <-s.Messages():
				if !ok {
					return s.Err()
				}
				printMessage(out, msg)
			case <-ctx.Done():
				return nil
			}
		}
	},
}

func sendLines(in io.Reader, s *chatapi.RoomSocket, username string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.Send(domain.Message{Username: username, Message: line}); err != nil {
			log.Debug().Err(err).Msg("send stopped")
			return
		}
	}
	// End of input leaves the room.
	s.Close()
}

func printMessage(w io.Writer, msg domain.Message) {
	ts := ""
	if msg.SentAt != nil {
		ts = msg.SentAt.Local().Format("15:04:05") + " "
	}
	if msg.MessageType == domain.SystemMessage {
		fmt.Fprintf(w, "%s* %s\n", ts, msg.Message)
		return
	}
	fmt.Fprintf(w, "%s<%s> %s\n", ts, msg.Username, msg.Message)
}
