package assets

import (
	_ "embed"
	"fmt"
)

// PiecesYAML contains the raw tetromino catalog: rotation occupancy grids and
// display colours for the seven pieces.
//
//go:embed pieces.yaml
var PiecesYAML []byte

// Pieces returns the embedded catalog bytes.
func Pieces() ([]byte, error) {
	if len(PiecesYAML) == 0 {
		return nil, fmt.Errorf("embedded pieces.yaml is empty")
	}
	return PiecesYAML, nil
}
