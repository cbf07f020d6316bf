package finance

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/notification"
	"github.com/excellacademy/academia/core/user"
)

// templates under fs/templates/email
const (
	tmplPaymentConfirmation = "payment_confirmation"
	tmplPaymentReminder     = "payment_reminder"
)

// guardianNotice is what the guardian of a student hears about one of its invoices.
type guardianNotice struct {
	subject  string
	template string
	data     map[string]interface{}
	title    string
	message  string
}

// notifyGuardian emails the guardian of the student of inv and posts the notice to their inbox.
// Failures are logged only.
func (svc *Service) notifyGuardian(ctx context.Context, inv Invoice, gn guardianNotice) {
	guardian, err := svc.contacts.Guardian(ctx, inv.StudentID)
	if err != nil {
		svc.logger.Warn("getting guardian", err, map[string]interface{}{"invoice": inv.ID})
		return
	}

	_, err = svc.inbox.Notify(ctx, notification.NewNotification{
		RecipientID: guardian.ID,
		Title:       gn.title,
		Message:     gn.message,
		Type:        notification.TypeFee,
		RelatedURL:  "/invoices/" + inv.ID,
	})
	if err != nil {
		svc.logger.Error("posting invoice notification", err, map[string]interface{}{"invoice": inv.ID})
	}

	svc.emailGuardian(guardian, inv, gn)
}

func (svc *Service) emailGuardian(guardian user.User, inv Invoice, gn guardianNotice) {
	if guardian.Email == "" {
		return
	}
	gn.data["Name"] = guardian.Name
	gn.data["Invoice"] = inv
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: guardian.Name, Address: guardian.Email}},
		Subject:      gn.subject,
		TemplateName: gn.template,
		TemplateData: gn.data,
	})
}

func (svc *Service) sendPaymentConfirmation(ctx context.Context, inv Invoice, pmt Payment) {
	balance := inv.Balance().StringFixed(2)
	svc.notifyGuardian(ctx, inv, guardianNotice{
		subject:  "Payment received for invoice " + inv.Number,
		template: tmplPaymentConfirmation,
		data:     map[string]interface{}{"Payment": pmt, "Balance": balance},
		title:    "Payment received",
		message: fmt.Sprintf("A payment of %s was recorded for invoice %s (receipt %s). Outstanding balance: %s.",
			pmt.Amount.StringFixed(2), inv.Number, pmt.ReceiptNumber, balance),
	})
}

func (svc *Service) sendPaymentReminder(ctx context.Context, inv Invoice) {
	balance := inv.Balance().StringFixed(2)
	due := inv.DueDate.Format("02 Jan 2006")
	svc.notifyGuardian(ctx, inv, guardianNotice{
		subject:  "Invoice " + inv.Number + " is overdue",
		template: tmplPaymentReminder,
		data:     map[string]interface{}{"Balance": balance, "DueDate": due},
		title:    "Invoice overdue",
		message:  fmt.Sprintf("Invoice %s was due on %s and is now overdue. Outstanding balance: %s.", inv.Number, due, balance),
	})
}
