// Command journal dumps the framed records of a journal file for
// debugging: per-record offsets, ledger/entry ids and sizes.
package journal

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/streamvault/bookie/journal"
	"github.com/streamvault/bookie/utils/log"
)

const (
	journalUsage        = "journal"
	journalShortDesc    = "Dumps the records of a journal file"
	journalLongDesc     = "This command scans a journal file and prints every record it holds"
	journalFilePathDesc = "Path to the journal file"
	alignmentDesc       = "Journal alignment size the file was written with"
)

var (
	// Cmd is the journal command.
	Cmd = &cobra.Command{
		Use:     journalUsage,
		Short:   journalShortDesc,
		Long:    journalLongDesc,
		Aliases: []string{"journaldebugger"},
		Example: "bookie tool journal --journalFile <path>",
		RunE:    executeJournal,
	}
	// journalFilePath is the path to the journal file.
	journalFilePath string
	// alignmentSize must match the writer's journal_alignment_size.
	alignmentSize int64
)

func init() {
	// Parse flags.
	Cmd.Flags().StringVarP(&journalFilePath, "journalFile", "j", "", journalFilePathDesc)
	Cmd.Flags().Int64VarP(&alignmentSize, "alignment", "a", 512, alignmentDesc)
	Cmd.MarkFlagRequired("journalFile")
}

func executeJournal(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	records := 0
	var payloadBytes uint64
	err := journal.ScanJournalFile(filepath.Clean(journalFilePath), 0, alignmentSize,
		journal.ScannerFunc(func(version int, offset int64, entry []byte) error {
			var ledgerID, entryID int64 = -1, -1
			if len(entry) >= 16 {
				ledgerID = int64(binary.BigEndian.Uint64(entry[0:8]))
				entryID = int64(binary.BigEndian.Uint64(entry[8:16]))
			}
			fmt.Printf("offset %10d  ledger %8d  entry %8d  %s\n",
				offset, ledgerID, entryID, bytefmt.ByteSize(uint64(len(entry))))
			records++
			payloadBytes += uint64(len(entry))
			return nil
		}), nil)
	if err != nil {
		return err
	}
	log.Info("scanned %d records, %s of payload", records, bytefmt.ByteSize(payloadBytes))
	return nil
}
