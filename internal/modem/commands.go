// Package modem drives an analog voice modem over a serial line: command
// framing, the listener gate and the session lifecycle.
package modem

// AT commands used by the call screener. Exact strings matter for modem
// compatibility.
const (
	ATProbe        = "AT"
	ATFactoryReset = "ATZ3"
	ATVerbose      = "ATV1"
	ATEchoOn       = "ATE1"
	ATCallerID     = "AT+VCID=1" // formatted caller-ID report
	ATVoiceClass   = "AT+FCLASS=8"
	ATNoSilence    = "AT+VSD=128,0"
	ATAnswerLine   = "AT+VLS=1" // TAD mode
	ATHangup       = "ATH"
)

// DefaultInitCommands returns the setup sequence issued after the port opens:
// probe, reset to the voice profile, verbose results, echo, caller ID.
func DefaultInitCommands() []string {
	return []string{ATProbe, ATFactoryReset, ATVerbose, ATEchoOn, ATCallerID}
}

// Response tokens.
const (
	ResponseOK    = "OK"
	ResponseError = "ERROR"
)

// noiseByte is line noise (DLE) emitted by some voice modems around
// responses. Only this byte is stripped, other control bytes may carry meaning.
const noiseByte = "\x10"

// responseCutset is what gets trimmed from a response line before it is
// compared to the expected token.
const responseCutset = " \t\n\r" + noiseByte
