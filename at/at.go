package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Commands
	CmdAt        = "AT" + CRLF
	CmdVersion   = "AT+VER" + CRLF
	CmdJoin      = "AT+JOIN" + CRLF
	CmdModeOTAA  = "AT+MODE=LWOTAA" + CRLF
	CmdClassA    = "AT+CLASS=A" + CRLF
	CmdBandEU868 = "AT+DR=EU868" + CRLF
	CmdBandUS915 = "AT+DR=US915" + CRLF

	// Formats, completed with fmt
	FmtDataRate = "AT+DR=%d" + CRLF
	FmtPort     = "AT+PORT=%d" + CRLF
	FmtDevEUI   = `AT+ID=DevEUI,"%s"` + CRLF
	FmtAppEUI   = `AT+ID=AppEUI,"%s"` + CRLF
	FmtAppKey   = `AT+KEY=APPKEY,"%s"` + CRLF

	// Data uplink envelope: SendHexPrefix + HEX + SendHexSuffix
	SendHexPrefix = `AT+CMSGHEX="`
	SendHexSuffix = `"` + CRLF

	// EnvelopeOverhead is the room the uplink envelope needs around the hex
	// payload inside a response buffer, terminator included.
	EnvelopeOverhead = 16

	// Markers
	MarkerAlive     = "+AT: OK"
	MarkerVersion   = "+VER: "
	MarkerJoined    = "+JOIN: Network joined"
	MarkerMode      = "+MODE: LWOTAA"
	MarkerClass     = "+CLASS: A"
	MarkerBandEU868 = "+DR: EU868"
	MarkerBandUS915 = "+DR: US915"
	MarkerDataRate  = "+DR: "
	MarkerPort      = "+PORT: "
	MarkerDevEUI    = "+ID: DevEui"
	MarkerAppEUI    = "+ID: AppEui"
	MarkerAppKey    = "+KEY: APPKEY"
	MarkerDone      = "Done"

	// Response fields
	FieldRSSI    = "RSSI "
	FieldPort    = "PORT: "
	FieldPayload = `RX: "`
)
