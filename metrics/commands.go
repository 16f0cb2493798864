package metrics

import (
	"fmt"

	"github.com/caio-sobreiro/dicomnet/types"
)

// commandName maps a DIMSE command field to the label value used on the
// dimse_sent_total/dimse_received_total/dimse_handle_duration_seconds
// metrics, falling back to the hex code for anything outside the standard
// catalogue so an unexpected command never panics the label set.
func commandName(commandField uint16) string {
	switch commandField {
	case types.CStoreRQ:
		return "c_store_rq"
	case types.CStoreRSP:
		return "c_store_rsp"
	case types.CGetRQ:
		return "c_get_rq"
	case types.CGetRSP:
		return "c_get_rsp"
	case types.CFindRQ:
		return "c_find_rq"
	case types.CFindRSP:
		return "c_find_rsp"
	case types.CMoveRQ:
		return "c_move_rq"
	case types.CMoveRSP:
		return "c_move_rsp"
	case types.CEchoRQ:
		return "c_echo_rq"
	case types.CEchoRSP:
		return "c_echo_rsp"
	case types.CCancelRQ:
		return "c_cancel_rq"
	case types.NEventReportRQ:
		return "n_event_report_rq"
	case types.NEventReportRSP:
		return "n_event_report_rsp"
	case types.NGetRQ:
		return "n_get_rq"
	case types.NGetRSP:
		return "n_get_rsp"
	case types.NSetRQ:
		return "n_set_rq"
	case types.NSetRSP:
		return "n_set_rsp"
	case types.NActionRQ:
		return "n_action_rq"
	case types.NActionRSP:
		return "n_action_rsp"
	case types.NCreateRQ:
		return "n_create_rq"
	case types.NCreateRSP:
		return "n_create_rsp"
	case types.NDeleteRQ:
		return "n_delete_rq"
	case types.NDeleteRSP:
		return "n_delete_rsp"
	default:
		return fmt.Sprintf("unknown_0x%04x", commandField)
	}
}
