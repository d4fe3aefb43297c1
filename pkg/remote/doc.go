/*
Package remote adapts cloud object stores to the conversion pipeline.

	+-----------+       +-----------+       +-----------+
	|  Session  | ----> |  Backend  | ----> |  Client   |
	| (owned)   | auth  | (gdrive,  |       | list/get/ |
	|           |       |  github,  |       | open/     |
	+-----------+       |  fs)      |       | create    |
	                    +-----------+       +-----------+

🎯 Purpose:
- One explicitly owned Session per process, starting Unauthenticated
- Lazy authentication on first use, at most one flow in flight
- Whole-file download into the staging area, whole-file upload from it

⚠️ Errors:
- *AuthError (matches ErrAuth) when consent or refresh fails
- ErrAuthRequired when remote storage is used without a usable credential
- *Error (matches ErrRemote) for a failed list, resolve, download or upload

Backends register themselves with RegisterBackend from an init function and
are built by name with NewBackend.
*/
package remote
