package memory

// remoteUserSeparator joins workspace and user ids. Neither id is expected
// to contain it; this is not validated.
const remoteUserSeparator = "_"

// RemoteUserID derives the gateway user id for u. It is recomputed on every
// call and never stored.
func RemoteUserID(u UserMemory) string {
	return u.WorkspaceID + remoteUserSeparator + u.UserID
}
