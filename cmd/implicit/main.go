// Copyright 2025 implicit Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gs-dxdy/implicit/base/log"
	"github.com/gs-dxdy/implicit/dataset"
	"github.com/gs-dxdy/implicit/model"
	"github.com/gs-dxdy/implicit/model/cf"
	"github.com/gs-dxdy/implicit/sparse"
)

// Default build-time variable.
// These values are overridden via ldflags
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

func buildInfo() string {
	var info string
	info += fmt.Sprintln("Version:\t", Version)
	info += fmt.Sprintln("Go version:\t", runtime.Version())
	info += fmt.Sprintln("Git commit:\t", GitCommit)
	info += fmt.Sprintln("Built:\t\t", BuildTime)
	info += fmt.Sprintf("OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return info
}

var rootCommand = &cobra.Command{
	Use:   "implicit",
	Short: "Collaborative filtering for implicit feedback datasets.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(buildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var fitCommand = &cobra.Command{
	Use:   "fit TRAIN_FILE",
	Short: "Fit a model on a CSV of user,item[,weight] triples and save it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.Flags())
		defer log.CloseLogger()
		triples, userItems := loadUserItems(args[0])
		m := buildModel(cmd.Flags())
		jobs, _ := cmd.Flags().GetInt("jobs")
		if err := m.Fit(context.Background(), userItems.Transpose(), cf.NewFitConfig().SetJobs(jobs)); err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		output, _ := cmd.Flags().GetString("output")
		saveModel(output, m)
		log.Logger().Info("model saved",
			zap.String("path", output),
			zap.Int32("n_users", triples.UserDict.Count()),
			zap.Int32("n_items", triples.ItemDict.Count()))
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate TRAIN_FILE",
	Short: "Fit a model on a holdout split and report ranking metrics.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.Flags())
		defer log.CloseLogger()
		_, userItems := loadUserItems(args[0])
		testRatio, _ := cmd.Flags().GetFloat64("test-ratio")
		seed, _ := cmd.Flags().GetInt64("random-state")
		train, test, err := dataset.SplitUserItems(userItems, testRatio, seed)
		if err != nil {
			log.Logger().Fatal("failed to split dataset", zap.Error(err))
		}
		m := buildModel(cmd.Flags())
		jobs, _ := cmd.Flags().GetInt("jobs")
		if err := m.Fit(context.Background(), train.Transpose(), cf.NewFitConfig().SetJobs(jobs)); err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		topK, _ := cmd.Flags().GetInt("top-k")
		scores, err := cf.Evaluate(m, train, test, topK, jobs,
			cf.Precision, cf.Recall, cf.NDCG, cf.HR, cf.MRR)
		if err != nil {
			log.Logger().Fatal("failed to evaluate model", zap.Error(err))
		}
		name, _ := cmd.Flags().GetString("model")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Model", fmt.Sprintf("Precision@%d", topK), fmt.Sprintf("Recall@%d", topK),
			fmt.Sprintf("NDCG@%d", topK), fmt.Sprintf("HR@%d", topK), fmt.Sprintf("MRR@%d", topK)})
		_ = table.Append([]string{name,
			fmt.Sprintf("%.5f", scores[0]),
			fmt.Sprintf("%.5f", scores[1]),
			fmt.Sprintf("%.5f", scores[2]),
			fmt.Sprintf("%.5f", scores[3]),
			fmt.Sprintf("%.5f", scores[4])})
		_ = table.Render()
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend MODEL_FILE TRAIN_FILE USER",
	Short: "Print the top items for a user.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.Flags())
		defer log.CloseLogger()
		m := loadModel(args[0])
		triples, userItems := loadUserItems(args[1])
		userIndex, ok := triples.UserDict.Index(args[2])
		if !ok {
			log.Logger().Fatal("unknown user", zap.String("user", args[2]))
		}
		n, _ := cmd.Flags().GetInt("n")
		ids, scores, err := m.Recommend(userIndex, userItems, n, nil)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Error(err))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"#", "Item", "Score"})
		for i, id := range ids {
			name, _ := triples.ItemDict.String(id)
			_ = table.Append([]string{
				strconv.Itoa(i + 1),
				name,
				fmt.Sprintf("%.5f", scores[i]),
			})
		}
		_ = table.Render()
	},
}

var similarCommand = &cobra.Command{
	Use:   "similar MODEL_FILE TRAIN_FILE ITEM",
	Short: "Print the items most similar to an item.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.Flags())
		defer log.CloseLogger()
		m := loadModel(args[0])
		triples, _ := loadUserItems(args[1])
		itemIndex, ok := triples.ItemDict.Index(args[2])
		if !ok {
			log.Logger().Fatal("unknown item", zap.String("item", args[2]))
		}
		n, _ := cmd.Flags().GetInt("n")
		ids, scores, err := m.SimilarItems(itemIndex, n)
		if err != nil {
			log.Logger().Fatal("failed to find similar items", zap.Error(err))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"#", "Item", "Similarity"})
		for i, id := range ids {
			name, _ := triples.ItemDict.String(id)
			_ = table.Append([]string{
				strconv.Itoa(i + 1),
				name,
				fmt.Sprintf("%.5f", scores[i]),
			})
		}
		_ = table.Render()
	},
}

func setupLogger(flags *pflag.FlagSet) {
	debug, _ := flags.GetBool("debug")
	log.SetLogger(flags, debug)
}

func loadUserItems(path string) (*dataset.Triples, *sparse.Matrix) {
	triples, err := dataset.LoadCSV(path)
	if err != nil {
		log.Logger().Fatal("failed to load dataset", zap.String("path", path), zap.Error(err))
	}
	userItems, err := triples.UserItems()
	if err != nil {
		log.Logger().Fatal("failed to build interaction matrix", zap.Error(err))
	}
	return triples, userItems
}

func buildModel(flags *pflag.FlagSet) cf.Recommender {
	name, _ := flags.GetString("model")
	params := model.Params{}
	if flags.Changed("n-factors") {
		v, _ := flags.GetInt("n-factors")
		params[model.NFactors] = v
	}
	if flags.Changed("n-epochs") {
		v, _ := flags.GetInt("n-epochs")
		params[model.NEpochs] = v
	}
	if flags.Changed("lr") {
		v, _ := flags.GetFloat64("lr")
		params[model.Lr] = v
	}
	if flags.Changed("reg") {
		v, _ := flags.GetFloat64("reg")
		params[model.Reg] = v
	}
	if flags.Changed("alpha") {
		v, _ := flags.GetFloat64("alpha")
		params[model.Alpha] = v
	}
	if flags.Changed("neighbors") {
		v, _ := flags.GetInt("neighbors")
		params[model.K] = v
	}
	if flags.Changed("random-state") {
		v, _ := flags.GetInt64("random-state")
		params[model.RandomState] = v
	}
	switch name {
	case "als":
		return cf.NewALS(params)
	case "bpr":
		return cf.NewBPR(params)
	case "item_knn":
		return cf.NewItemKNN(params)
	default:
		log.Logger().Fatal("unknown model", zap.String("model", name))
		return nil
	}
}

func saveModel(path string, m cf.Recommender) {
	file, err := os.Create(path)
	if err != nil {
		log.Logger().Fatal("failed to create model file", zap.String("path", path), zap.Error(err))
	}
	defer file.Close()
	if err := cf.MarshalModel(file, m); err != nil {
		log.Logger().Fatal("failed to save model", zap.String("path", path), zap.Error(err))
	}
}

func loadModel(path string) cf.Recommender {
	file, err := os.Open(path)
	if err != nil {
		log.Logger().Fatal("failed to open model file", zap.String("path", path), zap.Error(err))
	}
	defer file.Close()
	m, err := cf.UnmarshalModel(file)
	if err != nil {
		log.Logger().Fatal("failed to load model", zap.String("path", path), zap.Error(err))
	}
	return m
}

func addModelFlags(flags *pflag.FlagSet) {
	flags.String("model", "als", "model family (als, bpr or item_knn)")
	flags.Int("n-factors", 16, "number of latent factors")
	flags.Int("n-epochs", 0, "number of training epochs")
	flags.Float64("lr", 0.05, "learning rate (bpr)")
	flags.Float64("reg", 0.06, "regularization strength")
	flags.Float64("alpha", 0.001, "weight of unobserved entries (als)")
	flags.Int("neighbors", 20, "number of neighbors kept per item (item_knn)")
	flags.Int64("random-state", 0, "random seed")
	flags.Int("jobs", runtime.NumCPU(), "number of concurrent jobs")
}

func init() {
	rootCommand.PersistentFlags().Bool("version", false, "implicit version")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
	addModelFlags(fitCommand.Flags())
	fitCommand.Flags().StringP("output", "o", "model.bin", "path of the saved model")
	addModelFlags(evaluateCommand.Flags())
	evaluateCommand.Flags().Float64("test-ratio", 0.2, "fraction of interactions held out per user")
	evaluateCommand.Flags().Int("top-k", 10, "length of recommendation lists")
	recommendCommand.Flags().IntP("n", "n", 10, "number of recommended items")
	similarCommand.Flags().IntP("n", "n", 10, "number of similar items")
	rootCommand.AddCommand(fitCommand, evaluateCommand, recommendCommand, similarCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
