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
)

func newKeysCommand(ctx *cmdContext) *cobra.Command {

	var start, end string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Enumerate logical keys (unverified, tooling only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			var upper []byte
			if end != "" {
				upper = []byte(end)
			}
			reader, err := eng.ScanKeys([]byte(start), upper)
			if err != nil {
				return err
			}
			defer reader.Close()

			buffer := make([][]byte, 100)
			for {
				n, err := reader.Read(buffer)
				if err != nil {
					return err
				}
				if n == 0 {
					return nil
				}
				for _, key := range buffer[:n] {
					fmt.Printf("%s\n", key)
				}
			}
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Inclusive lower bound of the scan")
	cmd.Flags().StringVar(&end, "end", "", "Exclusive upper bound of the scan (empty: no bound)")

	return cmd
}
