package inventory

import (
	"encoding/csv"
	"io"
)

// OnHandFilename is the download name of the on-hand export.
const OnHandFilename = "inventory_on_hand.csv"

// WriteOnHandCSV serialises the on-hand table with its header row.
func WriteOnHandCSV(w io.Writer, table OnHand) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
