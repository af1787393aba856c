package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var (
	scoreMode    string
	scoreVariant string
	scoreItem    string
	scoreLang    string
	scoreDetails bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [recording]",
	Short: "Score a recording against the references of an item",
	Long: `Decode a learner recording, resolve the reference recordings of the item
and print the score and feedback as JSON. In single mode the closest reference
decides the score; in phrase mode the scores of all references are averaged.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&scoreMode, "mode", "m", string(pronunciation.ModeSingleItem),
		"scoring mode (single, phrase)")
	scoreCmd.Flags().StringVar(&scoreVariant, "variant", "default",
		"reference variant, e.g. a reciter or accent")
	scoreCmd.Flags().StringVarP(&scoreItem, "item", "i", "",
		"letter or phrase name (reference file prefix)")
	scoreCmd.Flags().StringVarP(&scoreLang, "lang", "l", "en",
		"feedback language (BCP 47 tag)")
	scoreCmd.Flags().BoolVar(&scoreDetails, "details", false,
		"print the full result including per-template scores")
	_ = scoreCmd.MarkFlagRequired("item")
}

func runScore(cmd *cobra.Command, args []string) error {
	mode, err := pronunciation.ParseMode(scoreMode)
	if err != nil {
		return err
	}

	lang, err := language.Parse(scoreLang)
	if err != nil {
		lang = language.English
	}
	lang = pronunciation.MatchLanguage(lang)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.evaluator.Config().Timeout)
	defer cancel()

	result, err := score(ctx, a, args[0], mode, lang)

	var out any = pronunciation.NewResponse(mode, lang, result, err)
	if scoreDetails && result != nil {
		out = result
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return fmt.Errorf("failed to write response: %w", encErr)
	}

	// Rejected recordings are a normal outcome, reported in the response
	if err != nil && !pronunciation.IsInputError(err) {
		return err
	}
	return nil
}

func score(ctx context.Context, a *app, path string, mode pronunciation.Mode, lang language.Tag) (*pronunciation.ScoreResult, error) {
	audio, err := a.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, pronunciation.NewError(pronunciation.KindInput, "cannot decode recording", err)
	}

	templates, err := a.loader.Resolve(ctx, mode, scoreVariant, scoreItem)
	if err != nil {
		return nil, err
	}

	return a.evaluator.Evaluate(ctx, pronunciation.AudioSignal{
		Samples:    audio.PCM,
		SampleRate: audio.SampleRate,
	}, templates, mode, lang)
}
