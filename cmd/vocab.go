package cmd

import (
	"github.com/spf13/cobra"
)

func newVocabCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "vocab",
		Short: "build the tokenizer for the corpus and export it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), o.verbose)
			cfg, err := o.resolveConfig(cmd)
			if err != nil {
				return err
			}
			tk, _, err := loadTokens(cfg, logger)
			if err != nil {
				return err
			}
			if err := tk.ExportVocabJSON(o.vocabOut); err != nil {
				return err
			}
			logger.Infof("exported %s", o.vocabOut)
			return nil
		},
	}
	c.Flags().StringVar(&o.vocabOut, "out", "vocab.json", "where to write the vocabulary")
	return c
}
