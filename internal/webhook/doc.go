// Package webhook verifies GitHub webhook deliveries and routes them to
// registered handlers.
//
// # Security Model
//
//   - Every delivery must carry X-Hub-Signature-256: "sha256=" followed by the
//     lowercase hex HMAC-SHA256 of the raw body, keyed by the shared secret.
//   - The expected value is compared in constant time (crypto/subtle).
//   - Missing and invalid signatures get the same 401 body; handlers never
//     see unverified bytes.
//   - The secret never reaches logs; bodies are logged only as a BLAKE3
//     fingerprint.
//
// # Request Flow
//
//  1. Body read, bounded by the maximum size (413 when exceeded)
//  2. Signature checked (401 on failure, registry untouched)
//  3. X-GitHub-Event mapped to an EventKind; unlisted names become Unknown
//  4. Handlers for that kind run one after another, in registration order
//  5. 200 returned once verification passed, whatever the handlers did
//
// A handler error or panic is recorded in Result.Err and reported to the
// Observer; the handlers after it still run.
//
// # Example Usage
//
//	reg := webhook.NewRegistryBuilder().
//		OnFunc(webhook.IssueComment, func(ctx context.Context, p *webhook.Payload) error {
//			ic, err := p.IssueComment()
//			if err != nil {
//				return err
//			}
//			log.Printf("%s commented on #%d", ic.Sender.GetLogin(), ic.Issue.GetNumber())
//			return nil
//		}).
//		Build()
//
//	http.Handle("/webhook", webhook.NewDispatcher(secret, reg))
package webhook
