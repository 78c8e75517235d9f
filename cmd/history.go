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
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *cmdContext) *cobra.Command {

	var from, to uint64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Audit a range of the epoch chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if to == 0 {
				head, err := eng.Head()
				if err != nil {
					return err
				}
				to = head.Number
			}

			epochs, ok, err := eng.Audit(from, to)
			if err != nil {
				return err
			}

			for _, e := range epochs {
				fmt.Printf("epoch %d  root %x  prev %x  %s\n",
					e.Number, e.Root, e.PrevRoot, time.Unix(0, e.Timestamp).UTC().Format(time.RFC3339))
			}
			if !ok {
				return fmt.Errorf("chain verification failed: broken link in [%d, %d]", from, to)
			}
			fmt.Printf("\nChain verification: OK\n\n")
			return nil
		},
	}

	cmd.Flags().Uint64Var(&from, "from", 0, "First epoch to audit")
	cmd.Flags().Uint64Var(&to, "to", 0, "Last epoch to audit (default: current head)")

	return cmd
}
