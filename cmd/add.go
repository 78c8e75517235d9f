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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbva/verikv/smt"
)

func newAddCommand(ctx *cmdContext) *cobra.Command {

	var metadata string

	cmd := &cobra.Command{
		Use:   "add <key> <value>",
		Short: "Commit a key-value pair as a new epoch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			batch := smt.NewBatch().Put([]byte(args[0]), []byte(args[1]))
			epoch, err := eng.Commit(batch, []byte(metadata))
			if err != nil {
				return err
			}

			fmt.Printf("\nCommitted epoch [ %d ]\n", epoch.Number)
			fmt.Printf(" Root: %x\n", epoch.Root)
			fmt.Printf(" PrevRoot: %x\n\n", epoch.PrevRoot)
			return nil
		},
	}

	cmd.Flags().StringVarP(&metadata, "metadata", "m", "", "Opaque metadata stored in the epoch")

	return cmd
}

func newDeleteCommand(ctx *cmdContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Commit a key deletion as a new epoch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			epoch, err := eng.Commit(smt.NewBatch().Delete([]byte(args[0])), nil)
			if err != nil {
				return err
			}

			fmt.Printf("\nCommitted epoch [ %d ]\n", epoch.Number)
			fmt.Printf(" Root: %x\n\n", epoch.Root)
			return nil
		},
	}
}
