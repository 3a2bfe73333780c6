// Package secure provides memory-safe handling of client secrets.
//
// The rotation job holds two secrets during a run: the current secret read
// from the vault and the new secret minted by the directory. Both are sealed
// in a SecureBuffer as soon as they arrive and opened only for the single
// call that needs the plaintext.
//
// # Usage
//
//	buf, err := secure.FromString(value)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	err = buf.Use(func(secret string) error {
//	    return store.Set(ctx, name, secret)
//	})
//
// # Platform Behavior
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When mlock is not
// available memguard still encrypts the data, it just cannot keep it out of
// swap.
//
// It does NOT protect against an attacker with access to the running
// process, and the strings handed to SDK calls live on the ordinary Go heap
// until collected.
package secure
