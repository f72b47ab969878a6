package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mavahu/opacity-go/metadata"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ls [folder]",
		Aliases: []string{"list"},
		Short:   "List the files and folders of a remote folder",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := "/"
			if len(args) == 1 {
				folder = args[0]
			}

			s, err := a.session(cmd.Context(), "listing")
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.vault.List(cmd.Context(), folder)
			if err != nil {
				return err
			}

			folders := append([]metadata.FolderRef(nil), doc.Folders...)
			sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
			files := append([]metadata.FileEntry(nil), doc.Files...)
			sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, f := range folders {
				fmt.Fprintf(tw, "%s\t%s\t\n", pathText.Sprint(f.Name+"/"), dimText.Sprint("-"))
			}
			for i := range files {
				f := &files[i]
				modified := time.UnixMilli(f.Modified).Local().Format("2006-01-02 15:04")
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, humanSize(f.Size()), dimText.Sprint(modified))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(folders)+len(files) == 0 {
				a.printf(cmd, "%s\n", dimText.Sprint("(empty)"))
			}
			return nil
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <folder>",
		Short: "Create a remote folder and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := metadata.CleanPath(args[0])
			if err != nil {
				return err
			}
			if p == "/" {
				return fmt.Errorf("%w: the root folder always exists", metadata.ErrInvalidPath)
			}

			s, err := a.session(cmd.Context(), "creating")
			if err != nil {
				return err
			}
			defer s.close()

			created, err := s.vault.CreateFolder(cmd.Context(), metadata.Parent(p), metadata.Base(p))
			if err != nil {
				return err
			}
			if created {
				a.printf(cmd, "%s created %s\n", successText.Sprint("✓"), pathText.Sprint(p))
			} else {
				a.printf(cmd, "%s %s already exists\n", warningText.Sprint("-"), pathText.Sprint(p))
			}
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local-path>... <folder>",
		Short: "Upload local files or directories into a remote folder",
		Long: `Uploads each local file into the remote folder. Directories are uploaded
recursively as a folder of the same name. Names that already exist in the
destination are skipped.

Examples:
  opacity upload report.pdf /docs
  opacity upload ./photos /`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := args[len(args)-1]
			s, err := a.session(cmd.Context(), "uploading")
			if err != nil {
				return err
			}
			defer s.close()

			count := 0
			var errs []error
			for _, local := range args[:len(args)-1] {
				res, err := s.vault.Upload(cmd.Context(), folder, local)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", local, err))
					continue
				}
				if err := a.report(res); err != nil {
					errs = append(errs, err)
				}
				count += len(res.Succeeded)
			}
			s.sink.stop()
			a.printf(cmd, "%d uploaded\n", count)
			return errors.Join(errs...)
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote-path>... <local-dir>",
		Short: "Download remote files or folders into a local directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[len(args)-1]
			s, err := a.session(cmd.Context(), "downloading")
			if err != nil {
				return err
			}
			defer s.close()

			count := 0
			var errs []error
			for _, remote := range args[:len(args)-1] {
				folder, item, err := resolve(cmd.Context(), s.vault, remote)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				res, err := s.vault.Download(cmd.Context(), folder, item, dest)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", remote, err))
					continue
				}
				if err := a.report(res); err != nil {
					errs = append(errs, err)
				}
				count += len(res.Succeeded)
			}
			s.sink.stop()
			a.printf(cmd, "%d downloaded\n", count)
			return errors.Join(errs...)
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <remote-path>...",
		Aliases: []string{"delete"},
		Short:   "Delete remote files and folders",
		Long: `Deletes files and folders. A folder is deleted with everything below it,
including the stored file contents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context(), "deleting")
			if err != nil {
				return err
			}
			defer s.close()

			// Group by parent so each folder document is rewritten once.
			byFolder := make(map[string][]metadata.ItemRef)
			var folders []string
			var errs []error
			for _, remote := range args {
				folder, item, err := resolve(cmd.Context(), s.vault, remote)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if _, ok := byFolder[folder]; !ok {
					folders = append(folders, folder)
				}
				byFolder[folder] = append(byFolder[folder], item)
			}

			for _, folder := range folders {
				res, err := s.vault.Delete(cmd.Context(), folder, byFolder[folder])
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if err := a.report(res); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}
