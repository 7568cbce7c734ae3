package mail

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kattest/internal/render"
)

type AttestationSignedData struct {
	RecipientName   string
	Numero          string
	BeneficiaryName string
	SignedAt        string
	VerifyURL       string
}

type AttestationReturnedData struct {
	RecipientName string
	Numero        string
	RequestNumero string
	DirectorName  string
	Comment       string
}

func SendOTP(sender MailSender, toEmail string, fullName string, otpCode string, expireMinutes int) error {
	params := fiber.Map{
		"fullName":      fullName,
		"otpCode":       otpCode,
		"expireMinutes": expireMinutes,
	}
	body, err := render.RenderHTML("mail/otp-code", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s est votre code de vérification", otpCode),
		Body:    body,
		IsHTML:  true,
	})
}

func SendAttestationSigned(sender MailSender, toEmail string, data AttestationSignedData) error {
	params := fiber.Map{
		"recipientName":   data.RecipientName,
		"numero":          data.Numero,
		"beneficiaryName": data.BeneficiaryName,
		"signedAt":        data.SignedAt,
		"verifyURL":       data.VerifyURL,
	}
	body, err := render.RenderHTML("mail/attestation-signed", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Attestation %s signée", data.Numero),
		Body:    body,
		IsHTML:  true,
	})
}

func SendAttestationReturned(sender MailSender, toEmail string, data AttestationReturnedData) error {
	params := fiber.Map{
		"recipientName": data.RecipientName,
		"numero":        data.Numero,
		"requestNumero": data.RequestNumero,
		"directorName":  data.DirectorName,
		"comment":       data.Comment,
	}
	body, err := render.RenderHTML("mail/attestation-returned", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("Attestation %s retournée", data.Numero),
		Body:    body,
		IsHTML:  true,
	})
}
