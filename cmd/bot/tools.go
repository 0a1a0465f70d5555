package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		stream bool
		clean  bool
		model  string
	)

	cmd := &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Send one prompt to the backend and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := newInferenceClient(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}

			req := inference.Request{
				Model:  a.cfg.Model.Name,
				Prompt: strings.Join(args, " "),
				Options: inference.Options{
					inference.OptionTemperature: a.cfg.Model.Temperature,
					inference.OptionMaxTokens:   a.cfg.Model.MaxTokens,
				},
			}
			if model != "" {
				req.Model = model
			}

			out := cmd.OutOrStdout()
			if stream && !clean {
				for chunk, err := range client.GenerateStream(ctx, req) {
					if err != nil {
						return err
					}
					_, _ = fmt.Fprint(out, chunk)
				}
				writeLine(out, "")
				return nil
			}

			var answer string
			if stream {
				var sb strings.Builder
				for chunk, err := range client.GenerateStream(ctx, req) {
					if err != nil {
						return err
					}
					sb.WriteString(chunk)
				}
				answer = sb.String()
			} else if answer, err = client.Generate(ctx, req); err != nil {
				return err
			}

			if clean {
				answer = chat.CleanResponse(answer)
			}
			writeLine(out, "%s", answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the answer as it is generated")
	cmd.Flags().BoolVar(&clean, "clean", false, "Strip [THINKING] sections and markup from the answer")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use instead of model.name")
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newInferenceClient(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}

			names, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				writeLine(cmd.OutOrStdout(), "%s", name)
			}
			return nil
		},
	}
}

func newEmbedCmd(a *app) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "embed TEXT...",
		Short: "Compute an embedding and print its dimension",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newInferenceClient(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}

			if model == "" {
				model = a.cfg.Model.EmbeddingModel
			}
			vec, err := client.Embeddings(cmd.Context(), model, strings.Join(args, " "))
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "model=%s dimensions=%d", model, len(vec))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Embedding model to use instead of model.embedding_model")
	return cmd
}
