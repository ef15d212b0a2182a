package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"document-assistant/internal/db"
	"document-assistant/internal/helper"
	"document-assistant/internal/models"
)

var bookingStatusFilter string

var bookCmd = &cobra.Command{
	Use:   "book [message]",
	Short: "Create an interview booking from a free-text request",
	Args:  cobra.ExactArgs(1),
	RunE:  runBook,
}

var bookingCmd = &cobra.Command{
	Use:   "booking",
	Short: "Inspect and manage bookings",
}

var bookingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBookingList,
}

var bookingShowCmd = &cobra.Command{
	Use:   "show [booking-id]",
	Short: "Show one booking",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookingShow,
}

var bookingConfirmCmd = &cobra.Command{
	Use:   "confirm [booking-id]",
	Short: "Confirm a pending booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBookingStatus(cmd, args[0], models.BookingConfirmed)
	},
}

var bookingCancelCmd = &cobra.Command{
	Use:   "cancel [booking-id]",
	Short: "Cancel a booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBookingStatus(cmd, args[0], models.BookingCancelled)
	},
}

var bookingStatusCmd = &cobra.Command{
	Use:   "status [booking-id] [pending|confirmed|cancelled]",
	Short: "Move a booking to another status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setBookingStatus(cmd, args[0], models.BookingStatus(args[1]))
	},
}

func init() {
	bookingListCmd.Flags().StringVar(&bookingStatusFilter, "status", "", "Only list bookings with this status")

	bookingCmd.AddCommand(bookingListCmd, bookingShowCmd, bookingConfirmCmd, bookingCancelCmd, bookingStatusCmd)
	rootCmd.AddCommand(bookCmd, bookingCmd)
}

func runBook(cmd *cobra.Command, args []string) error {
	svc, err := app.Booking(true)
	if err != nil {
		return err
	}
	b, err := svc.Book(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Booking %d created for %s on %s at %s (%s)\n", b.ID, b.Name, b.Date, b.Time, b.Status)
	return nil
}

func runBookingList(cmd *cobra.Command, args []string) error {
	svc, err := app.Booking(false)
	if err != nil {
		return err
	}
	bookings, err := svc.List(cmd.Context(), models.BookingStatus(bookingStatusFilter))
	if err != nil {
		return err
	}
	if len(bookings) == 0 {
		cmd.Println("No bookings found")
		return nil
	}
	for i := range bookings {
		printBookingLine(cmd, &bookings[i])
	}
	cmd.Printf("\nTotal: %d bookings\n", len(bookings))
	return nil
}

func runBookingShow(cmd *cobra.Command, args []string) error {
	id, err := parseBookingID(args[0])
	if err != nil {
		return err
	}
	svc, err := app.Booking(false)
	if err != nil {
		return err
	}
	b, err := svc.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return helper.PrettyPrint(cmd.OutOrStdout(), b)
}

func setBookingStatus(cmd *cobra.Command, rawID string, status models.BookingStatus) error {
	id, err := parseBookingID(rawID)
	if err != nil {
		return err
	}
	svc, err := app.Booking(false)
	if err != nil {
		return err
	}
	b, err := svc.UpdateStatus(cmd.Context(), id, status)
	if err != nil {
		return err
	}
	printBookingLine(cmd, b)
	return nil
}

func printBookingLine(cmd *cobra.Command, b *db.Booking) {
	cmd.Printf("  %d  %-10s %s %s  %s <%s> %s\n", b.ID, b.Status, b.Date, b.Time, b.Name, b.Email, b.PhoneNumber)
}

func parseBookingID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid booking id %q", raw)
	}
	return id, nil
}
