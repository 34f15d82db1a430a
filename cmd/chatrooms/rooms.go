package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List, inspect and create rooms",
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum messages to fetch (0 lets the service decide)")
	roomsCmd.AddCommand(listCmd, getCmd, createCmd, historyCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rooms, err := c.ListRooms(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rooms)
	},
}

var getCmd = &cobra.Command{
	Use:   "get ROOM_ID",
	Short: "Show one room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		room, err := c.GetRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), room)
	},
}

var createCmd = &cobra.Command{
	Use:   "create [NAME]",
	Short: "Create a room",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		room, err := c.CreateRoom(cmd.Context(), name)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), room)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history ROOM_ID",
	Short: "Show recent messages of a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		history, err := c.RoomHistory(cmd.Context(), args[0], historyLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), history)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
