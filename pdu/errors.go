package pdu

import (
	"fmt"

	dicomerrors "github.com/caio-sobreiro/dicomnet/errors"
)

func errShortItem(what string) error {
	return dicomerrors.NewPDUError(0, fmt.Sprintf("truncated %s", what))
}
