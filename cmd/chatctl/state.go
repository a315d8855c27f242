package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/chatkeeper/bot"
)

func stateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and update room state snapshots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "decode <link>",
			Short: "Decode a state link without logging in",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				codec, err := a.codec()
				if err != nil {
					return err
				}
				s, err := codec.Decode(args[0])
				if err != nil {
					return err
				}
				return printSnapshot(cmd.OutOrStdout(), 0, s)
			},
		},
		&cobra.Command{
			Use:   "show [room]",
			Short: "Recover and print the current snapshot of every room, or one room",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := a.newBot(cmd.Context())
				if err != nil {
					return err
				}
				rooms := b.Rooms()
				if len(args) == 1 {
					roomID, err := parseRoom(args[0])
					if err != nil {
						return err
					}
					rooms = []int64{roomID}
				}
				for _, roomID := range rooms {
					s, ok := b.State(roomID)
					if !ok {
						return fmt.Errorf("no state found for room %d", roomID)
					}
					if err := printSnapshot(cmd.OutOrStdout(), roomID, s); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <room> [key=json]...",
			Short: "Merge fields into a room's snapshot and post it",
			Long:  "Merge fields into a room's snapshot and post it. Values are JSON; anything that is not valid JSON is stored as a string. With no fields the snapshot is simply re-signed.",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				roomID, err := parseRoom(args[0])
				if err != nil {
					return err
				}
				fields, err := parseFields(args[1:])
				if err != nil {
					return err
				}
				b, err := a.newBot(cmd.Context())
				if err != nil {
					return err
				}
				ack, err := b.Update(cmd.Context(), roomID, fields)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed room %d in message %d\n", roomID, ack.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "keepalive",
			Short: "Run one keep-alive pass now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := a.newBot(cmd.Context())
				if err != nil {
					return err
				}
				return b.KeepAlive(cmd.Context())
			},
		},
	)
	return cmd
}

func parseFields(args []string) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", arg)
		}
		if json.Valid([]byte(value)) {
			fields[key] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = quoted
	}
	return fields, nil
}

func printSnapshot(out io.Writer, roomID int64, s bot.Snapshot) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	if roomID != 0 {
		fmt.Fprintf(out, "room %d (message %d, signed %s, keepAlive=%t)\n",
			roomID, s.PreviousMessageID, time.UnixMilli(s.T).UTC().Format(time.RFC3339), s.KeepAlive())
	}
	fmt.Fprintf(out, "%s\n", raw)
	return nil
}
