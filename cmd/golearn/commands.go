package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	goLearn "github.com/MrEthical07/goLearn"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("GOLEARN_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or GOLEARN_PASSWORD) are required")
			}
			u, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.client.CurrentUser(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, u)
		},
	}
}

func (a *app) coursesCmd() *cobra.Command {
	coursesCmd := &cobra.Command{
		Use:   "courses",
		Short: "Browse the course catalogue",
	}

	var q goLearn.CourseQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List published courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.client.ListCourses(cmd.Context(), q)
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, page)
		},
	}
	list.Flags().StringVar(&q.Search, "search", "", "Title search")
	list.Flags().StringVar(&q.Category, "category", "", "Category filter")
	list.Flags().StringVar(&q.Level, "level", "", "Level filter")
	list.Flags().StringVar(&q.Sort, "sort", "", "Sort order")
	addPageFlags(list, &q.ListOptions)

	get := &cobra.Command{
		Use:   "get COURSE_ID",
		Short: "Show a course with its curriculum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client.GetCourse(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, c)
		},
	}

	enroll := &cobra.Command{
		Use:   "enroll COURSE_ID",
		Short: "Enroll in a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.client.Enroll(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, e)
		},
	}

	coursesCmd.AddCommand(list, get, enroll)
	return coursesCmd
}

func (a *app) enrollmentsCmd() *cobra.Command {
	enrollmentsCmd := &cobra.Command{
		Use:   "enrollments",
		Short: "Your enrollments",
	}

	var opts goLearn.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List your enrollments and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.client.ListEnrollments(cmd.Context(), opts)
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, page)
		},
	}
	addPageFlags(list, &opts)

	var progress goLearn.ProgressUpdate
	complete := &cobra.Command{
		Use:   "complete ENROLLMENT_ID LECTURE_ID",
		Short: "Mark a lecture as completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress.LectureID = args[1]
			progress.Completed = true
			e, err := a.client.UpdateProgress(cmd.Context(), args[0], progress)
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, e)
		},
	}
	complete.Flags().IntVar(&progress.PositionSeconds, "position", 0, "Playback position in seconds")

	enrollmentsCmd.AddCommand(list, complete)
	return enrollmentsCmd
}

func (a *app) certificatesCmd() *cobra.Command {
	certificatesCmd := &cobra.Command{
		Use:   "certificates",
		Short: "Completion certificates",
	}

	var opts goLearn.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List your certificates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.client.ListCertificates(cmd.Context(), opts)
			if err != nil {
				return friendly(err)
			}
			return printJSON(cmd, page)
		},
	}
	addPageFlags(list, &opts)

	var output string
	download := &cobra.Command{
		Use:   "download CERTIFICATE_ID",
		Short: "Download a certificate PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				path = args[0] + ".pdf"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			n, err := a.client.DownloadCertificate(cmd.Context(), args[0], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(path)
				return friendly(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, n)
			return nil
		},
	}
	download.Flags().StringVarP(&output, "output", "o", "", "Destination file (default CERTIFICATE_ID.pdf)")

	certificatesCmd.AddCommand(list, download)
	return certificatesCmd
}

func (a *app) uploadCmd() *cobra.Command {
	var purpose, contentType string
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file through a presigned URL and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			ct := contentType
			if ct == "" {
				ct = mime.TypeByExtension(filepath.Ext(args[0]))
			}
			if ct == "" {
				ct = "application/octet-stream"
			}

			url, err := a.client.Upload(cmd.Context(), goLearn.UploadRequest{
				FileName:    filepath.Base(args[0]),
				ContentType: ct,
				Size:        info.Size(),
				Purpose:     purpose,
			}, f)
			if err != nil {
				return friendly(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", goLearn.UploadAvatar, "Upload purpose: thumbnail, lecture_video or avatar")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type (default from the file extension)")
	return cmd
}

func addPageFlags(cmd *cobra.Command, opts *goLearn.ListOptions) {
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number, 1-based")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Page size")
}
