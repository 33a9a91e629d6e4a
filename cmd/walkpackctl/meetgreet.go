package main

import (
	"github.com/spf13/cobra"
)

var meetGreetUndo bool

var meetGreetCmd = &cobra.Command{
	Use:   "meet-greet <dog-id> <walker-id>",
	Short: "Record that a dog completed its meet & greet with a walker",
	Args:  cobra.ExactArgs(2),
	RunE:  runMeetGreet,
}

func init() {
	meetGreetCmd.Flags().BoolVar(&meetGreetUndo, "undo", false, "clear the meet & greet flag instead of setting it")
	rootCmd.AddCommand(meetGreetCmd)
}

func runMeetGreet(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	dogID, walkerID := args[0], args[1]
	if err := store.SetMeetAndGreet(cmd.Context(), dogID, walkerID, !meetGreetUndo); err != nil {
		return err
	}

	if meetGreetUndo {
		cmd.Printf("Cleared meet & greet for dog %s with walker %s\n", dogID, walkerID)
	} else {
		cmd.Printf("Dog %s is now eligible for walks with %s\n", dogID, walkerID)
	}
	return nil
}
