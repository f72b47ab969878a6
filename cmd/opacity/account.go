package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mavahu/opacity-go/secretstore"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check an account handle with the broker and store it in the keyring",
		Long: `Reads the 128 character account handle without echo, logs in to the
broker and stores the handle in the OS keyring. The root folder is created
on first login. A piped handle is read from the first line of stdin.

Examples:
  opacity login
  echo "$HANDLE" | opacity login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readSecret(cmd.InOrStdin(), "Account handle: ")
			if err != nil {
				return err
			}
			if h == "" {
				return errors.New("no handle given")
			}

			s, status, err := a.open(cmd.Context(), h, "login")
			if err != nil {
				return err
			}
			defer s.close()

			if err := secretstore.SaveHandle(a.store, h); err != nil {
				return err
			}
			a.printf(cmd, "%s logged in as %s (%s)\n",
				successText.Sprint("✓"), s.vault.PublicKey(), status.PaymentStatus)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored account handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secretstore.ForgetHandle(a.store); err != nil {
				return err
			}
			a.printf(cmd, "%s logged out\n", successText.Sprint("✓"))
			return nil
		},
	}
}

func newAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show subscription and usage of the stored account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.handle()
			if err != nil {
				return err
			}
			s, status, err := a.open(cmd.Context(), h, "account")
			if err != nil {
				return err
			}
			defer s.close()

			acc := status.Account
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Public key:     %s\n", s.vault.PublicKey())
			fmt.Fprintf(w, "Payment status: %s\n", status.PaymentStatus)
			fmt.Fprintf(w, "Expires:        %s\n", acc.ExpirationDate)
			fmt.Fprintf(w, "Storage:        %.2f / %.2f GB\n", acc.StorageUsed, acc.StorageLimit)
			fmt.Fprintf(w, "Folders:        %d / %d\n", acc.TotalFolders, acc.MaxFolders)
			fmt.Fprintf(w, "Metadata:       %.2f / %.2f MB\n", acc.TotalMetadataSizeInMB, acc.MaxMetadataSizeInMB)

			up, down, upParts, downParts := s.vault.Limits()
			fmt.Fprintf(w, "Limits:         %d uploads x %d parts, %d downloads x %d parts\n",
				up, upParts, down, downParts)
			return nil
		},
	}
}
