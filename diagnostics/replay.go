package diagnostics

import (
	"fmt"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
)

// ReplayResult is one request/reply pair replayed from a capture against a
// live dispatcher, with the captured and observed status side by side.
type ReplayResult struct {
	Index          int
	Service        byte
	CapturedStatus cip.Status
	ObservedStatus cip.Status
	Matched        bool
	Err            error
}

// Replay re-dispatches every unconnected-send request frame captured in
// frames against d, pairing each with the reply frame that follows it on
// the same session handle, and reports whether the object model reproduces
// the captured status. It never touches a socket: this is the same
// conformance check a live server would perform, run offline against a
// capture instead of a wire.
//
// Frames the capture didn't pair (a request with no following reply, or a
// reply with no preceding request) are skipped rather than reported as a
// mismatch — an incomplete capture is not a conformance failure.
func Replay(d *cip.Dispatcher, frames []Frame) []ReplayResult {
	var results []ReplayResult
	for i := 0; i < len(frames)-1; i++ {
		req := frames[i]
		if req.Message.Header.Command != enip.CmdSendRRData {
			continue
		}
		reqPayload, err := UnconnectedPayload(req)
		if err != nil || len(reqPayload) == 0 || reqPayload[0]&0x80 != 0 {
			continue // not a request frame we can pair
		}

		reply, ok := findReply(frames, i+1, req.Message.Header.SessionHandle)
		if !ok {
			continue
		}
		replyPayload, err := UnconnectedPayload(reply)
		if err != nil || len(replyPayload) < 3 {
			continue
		}

		observed := d.DispatchRaw(reqPayload)
		result := ReplayResult{
			Index:          i,
			Service:        reqPayload[0],
			CapturedStatus: cip.Status(replyPayload[2]),
		}
		if len(observed) < 3 {
			result.Err = fmt.Errorf("diagnostics: dispatcher returned a %d-byte reply", len(observed))
		} else {
			result.ObservedStatus = cip.Status(observed[2])
			result.Matched = result.ObservedStatus == result.CapturedStatus
		}
		results = append(results, result)
	}
	return results
}

// findReply scans forward from start for the next SendRRData frame on the
// same session carrying a reply-shaped service byte.
func findReply(frames []Frame, start int, session uint32) (Frame, bool) {
	for i := start; i < len(frames); i++ {
		f := frames[i]
		if f.Message.Header.Command != enip.CmdSendRRData || f.Message.Header.SessionHandle != session {
			continue
		}
		payload, err := UnconnectedPayload(f)
		if err != nil || len(payload) == 0 {
			continue
		}
		if payload[0]&0x80 != 0 {
			return f, true
		}
		return Frame{}, false // next frame on this session is another request
	}
	return Frame{}, false
}
