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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbva/verikv/protocol"
)

func newProveCommand(ctx *cmdContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prove <key>",
		Short: "Generate an inclusion or non-inclusion proof for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			proof, epoch, err := eng.Prove([]byte(args[0]))
			if err != nil {
				return err
			}
			encoded, err := protocol.EncodeProof(proof)
			if err != nil {
				return err
			}

			included := proof.LeafKey != nil
			fmt.Printf("\nGenerated proof for key [ %s ] at epoch [ %d ]\n", args[0], epoch.Number)
			fmt.Printf(" Included: %t\n", included)
			fmt.Printf(" Root: %x\n", epoch.Root)
			fmt.Printf(" Proof: %s\n\n", hex.EncodeToString(encoded))
			return nil
		},
	}
}

func newVerifyCommand(ctx *cmdContext) *cobra.Command {

	var root, value string

	cmd := &cobra.Command{
		Use:   "verify <key> <proof>",
		Short: "Verify a proof against a published root, offline",
		Long: `Verify an inclusion or non-inclusion proof against a root. No storage
is consulted: the proof, the key, the claimed value and the root are all the
verifier needs. Pass --value to claim inclusion; omit it to claim absence.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasherF, err := ctx.hasherF()
			if err != nil {
				return err
			}
			rootDigest, err := hex.DecodeString(root)
			if err != nil {
				return fmt.Errorf("malformed root: %v", err)
			}
			encoded, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("malformed proof: %v", err)
			}

			proof, err := protocol.DecodeProof(encoded, hasherF)
			if err != nil {
				return err
			}

			var valueDigest []byte
			if value != "" {
				valueDigest = hasherF().Do([]byte(value))
			}

			if proof.Verify([]byte(args[0]), valueDigest, rootDigest) {
				fmt.Printf("\nVerify: OK\n\n")
				return nil
			}
			return fmt.Errorf("proof verification failed")
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", "", "Root digest the proof is verified against (hex)")
	cmd.Flags().StringVar(&value, "value", "", "Value whose inclusion is claimed; omit to claim absence")
	cmd.MarkFlagRequired("root")

	return cmd
}
