// Package rotation rotates the client secret of a directory application.
//
// A rotation run is a linear pipeline of five stages:
//
//  1. validate: every required setting is present. No I/O happens before this.
//  2. read-secret: the current client secret is read from the vault.
//  3. create-credential: the job authenticates to the directory with the
//     current secret and adds a new password credential that expires after
//     Config.Validity.
//  4. persist-secret: the new secret overwrites the vault entry.
//  5. prune-expired: the credential list is read again and every credential
//     whose expiry is strictly before now is removed in a single replace call.
//
// Creation always precedes pruning, so the application never ends a run
// without a valid credential even if every existing one had expired.
//
// # Usage
//
//	job := rotation.NewJob(
//	    vaults.Factory(cfg.Vault),
//	    graph.Factory(graph.Options{}),
//	    rotation.WithLogger(logger),
//	    rotation.WithRecorder(metrics),
//	)
//
//	result, err := job.Run(ctx, cfg.Rotation())
//	if errors.Is(err, rotation.ErrInconsistentState) {
//	    // a credential exists in the directory that the vault does not know
//	}
//
// # Failure Handling
//
// Every stage failure aborts the rest of the run. Nothing is retried and no
// compensating action is taken: the next scheduled run is the recovery
// mechanism, and pruning eventually clears credentials that were created but
// never adopted by the vault. Stage errors are *StageError values matching
// one of the sentinel kinds with errors.Is.
//
// # Security Considerations
//
// Secret values never appear in a Result, in logs or in errors produced by
// this package. Both the current and the new secret are held in
// secure.SecureBuffer enclaves for the duration of the run.
package rotation
