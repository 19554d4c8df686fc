package invites

import "fmt"

const inviteEmailSubject = "You've been invited as a Library Admin!"

// inviteEmailHTML builds the notification email body. The setup link is the
// magic-link URL issued by the identity store.
func inviteEmailHTML(setupURL string) string {
	return fmt.Sprintf(`
      <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="color: #1e40af;">Welcome to the Library</h1>
        <p>You've been invited to join as an administrator.</p>
        <p><a href="%s">Set up your password</a> to access the admin portal.</p>
        <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">
          If you didn't expect this invitation, you can safely ignore this email.
        </p>
      </div>
    `, setupURL)
}
