package handlers

var (
	SerializeUser  = serializeUser
	SerializeGroup = serializeGroup
	CBytes         = cBytes
	CheckedLen     = checkedLen
)
