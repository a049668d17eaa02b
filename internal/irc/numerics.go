package irc

// Numeric reply codes interpreted by the session layer.
const (
	RplMotd       = 372
	RplNamReply   = 353
	RplNamReplyV1 = 355 // pre-RFC2812 variant still sent by some servers
	RplEndOfNames = 366

	ErrNoSuchNick        = 401
	ErrNoSuchChannel     = 403
	ErrCannotSendToChan  = 404
	ErrUnknownCommand    = 421
	ErrNicknameInUse     = 433
	ErrNickCollision     = 436
	ErrChannelIsFull     = 471
	ErrInviteOnlyChan    = 473
	ErrBannedFromChan    = 474
	ErrBanListFull       = 478
	ErrChanOpPrivsNeeded = 482
)

// SASL result numerics handled by the transport.
const (
	RplLoggedIn  = 900
	RplLoggedOut = 901
	ErrSaslFail  = 904
)
