package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onnwee/chatkeeper/stackchat"
)

func searchCommand(a *app) *cobra.Command {
	var (
		q    stackchat.SearchQuery
		mine bool
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search chat messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			q.Text = args[0]
			if mine {
				q.UserID = client.UserID()
			}
			msgs, err := client.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printMessages(cmd.OutOrStdout(), msgs)
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&q.RoomID, "room", 0, "only messages in this room")
	flags.Int64Var(&q.UserID, "user", 0, "only messages by this user")
	flags.BoolVar(&mine, "mine", false, "only messages by the logged-in account")
	flags.IntVar(&q.Page, "page", 1, "result page")
	flags.IntVar(&q.PageSize, "pagesize", 100, "results per page")
	flags.StringVar(&q.Sort, "sort", stackchat.SortNewest, "newest or relevance")
	return cmd
}

func transcriptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <room>",
		Short: "Show the latest messages of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := parseRoom(args[0])
			if err != nil {
				return err
			}
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			msgs, err := client.Transcript(cmd.Context(), roomID)
			if err != nil {
				return err
			}
			return printMessages(cmd.OutOrStdout(), msgs)
		},
	}
}

func sendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <room> <text>",
		Short: "Post a message to a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := parseRoom(args[0])
			if err != nil {
				return err
			}
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			ack, err := client.SendMessage(cmd.Context(), roomID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent message %d\n", ack.ID)
			return nil
		},
	}
}

func printMessages(out io.Writer, msgs []stackchat.Message) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tMESSAGE\tUSER\tTEXT")
	for _, m := range msgs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", m.RoomID, m.MessageID, m.UserName, m.Text)
	}
	return w.Flush()
}

func parseRoom(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid room id %q", s)
	}
	return id, nil
}
