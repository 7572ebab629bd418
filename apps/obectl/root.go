package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/gradebook"
	"github.com/trezcool/masomo-obe/core/mapping"
	"github.com/trezcool/masomo-obe/core/session"
	"github.com/trezcool/masomo-obe/services/obeclient"
)

var readPasswordFunc = term.ReadPassword // mockable

// app holds what the commands share. It is filled in by the root command's pre-run,
// once the flags are parsed.
type app struct {
	conf   *core.Config
	logger core.Logger

	assumeYes bool
	in        *bufio.Reader
	out       io.Writer

	store  session.FileStore
	sess   *session.Session
	client *obeclient.Client

	mappings  *mapping.Service
	gradebook *gradebook.Service
	syncer    *course.EnrollmentSyncer
}

func newRootCmd(conf *core.Config, logger core.Logger) *cobra.Command {
	a := &app{conf: conf, logger: logger}

	root := &cobra.Command{
		Use:           "obectl",
		Short:         "Manage outcome mappings, assessment weights and grades of OBE courses",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.store.Save(a.sess)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&conf.Client.BaseURL, "api", conf.Client.BaseURL, "base URL of the OBE API")
	flags.StringVar(&conf.Client.SessionFile, "session", conf.Client.SessionFile, "file the login session is kept in")
	flags.DurationVar(&conf.Client.Timeout, "timeout", conf.Client.Timeout, "timeout of API requests")
	flags.BoolVarP(&a.assumeYes, "yes", "y", false, "answer yes to confirmation prompts")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newCoursesCmd(a),
		newMappingsCmd(a),
		newWeightsCmd(a),
		newGradesCmd(a),
		newFeedbackCmd(a),
		newEnrollmentCmd(a),
		newAchievementsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()

	a.store = session.FileStore{Path: a.conf.Client.SessionFile}
	a.sess = session.New()
	if err := a.store.Load(a.sess); err != nil {
		return err
	}
	// a session torn down mid-command (refresh refused) must not be resumed next time
	a.sess.OnEnd(func() {
		if err := a.store.Clear(); err != nil {
			a.logger.Warn("clearing session file", err)
		}
	})

	client, err := obeclient.NewFromConfig(a.conf, a.sess, a.logger)
	if err != nil {
		return err
	}
	a.client = client

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)

	a.mappings = mapping.NewService(client, a.sess, mapping.ConfirmFunc(a.confirm), a.logger)
	a.gradebook = gradebook.NewService(client, validate, translator, a.logger)
	a.syncer = course.NewEnrollmentSyncer(client, a.logger)
	return nil
}

// confirm asks a yes/no question on the command's input. Anything but y/yes declines.
func (a *app) confirm(_ context.Context, prompt string) (bool, error) {
	if a.assumeYes {
		return true, nil
	}
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "reading answer")
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "reading input")
	}
	return strings.TrimSpace(line), nil
}

func (a *app) promptPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}
