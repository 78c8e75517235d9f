/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package cmd implements the verikv command line tool.
package cmd

import (
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	v "github.com/spf13/viper"

	"github.com/bbva/verikv/log"
)

var Root *cobra.Command = &cobra.Command{
	Use:   "verikv",
	Short: "Verifiable key-value store",
	Long: `verikv maintains a cryptographically verifiable key-value store: every
commit publishes a new root in a hash-linked epoch chain, and every lookup
can be accompanied by a proof of inclusion or non-inclusion verifiable
against that root alone.`,
	// SilenceUsage is set to true -> https://github.com/spf13/cobra/issues/340
	SilenceUsage: true,
}

func init() {
	ctx := &cmdContext{}

	f := Root.PersistentFlags()
	f.StringVarP(&ctx.path, "path", "p", defaultPath(), "Storage path")
	f.StringVarP(&ctx.backend, "backend", "b", "badger", "Storage backend: badger|sqlite|bplus")
	f.StringVar(&ctx.hasher, "hasher", "sha256", "Hash function: sha256|blake2b|blake3")
	f.StringVarP(&ctx.logLevel, "log", "l", "error", "Log level: silent|error|info|debug")

	// Lookups
	v.SetEnvPrefix("verikv")
	v.AutomaticEnv()
	v.BindPFlag("path", f.Lookup("path"))
	v.BindPFlag("backend", f.Lookup("backend"))
	v.BindPFlag("hasher", f.Lookup("hasher"))
	v.BindPFlag("log", f.Lookup("log"))

	Root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		ctx.path = v.GetString("path")
		ctx.backend = v.GetString("backend")
		ctx.hasher = v.GetString("hasher")
		ctx.logLevel = v.GetString("log")
		log.SetLogger("verikv", ctx.logLevel)
	}

	Root.AddCommand(newAddCommand(ctx))
	Root.AddCommand(newDeleteCommand(ctx))
	Root.AddCommand(newGetCommand(ctx))
	Root.AddCommand(newProveCommand(ctx))
	Root.AddCommand(newVerifyCommand(ctx))
	Root.AddCommand(newHistoryCommand(ctx))
	Root.AddCommand(newKeysCommand(ctx))
}

func defaultPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".verikv"
	}
	return home + "/.verikv"
}
