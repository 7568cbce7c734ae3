package pdf

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/go-pdf/fpdf"
)

const (
	qrSize        = 256
	qrImageName   = "verification-qr"
	signatureName = "signature-image"
)

// AttestationDoc is everything printed on a certificate.
type AttestationDoc struct {
	SiteName        string
	Numero          string
	BeneficiaryName string
	ServiceName     string
	StartDate       time.Time
	EndDate         time.Time
	GeneratedAt     time.Time
	Signed          bool
	SignedAt        time.Time
	SignerName      string
	SignatureText   string
	SignatureImage  string // PNG data URL
	VerifyURL       string
}

func qrCodePNG(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDataURL(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, errors.New("signature image must be a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
}

// RenderAttestation writes an A4 certificate. The QR code of the verification URL is
// printed only on signed documents.
func RenderAttestation(w io.Writer, doc AttestationDoc) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Attestation "+doc.Numero, true)
	pdf.SetAuthor(doc.SiteName, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 14, tr("ATTESTATION DE FIN DE SERVICE CIVIQUE"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, tr("N° "+doc.Numero), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	body := fmt.Sprintf(
		"Nous attestons que %s a accompli une mission de service civique au sein de \"%s\" du %s au %s.",
		doc.BeneficiaryName,
		doc.ServiceName,
		doc.StartDate.Format("02/01/2006"),
		doc.EndDate.Format("02/01/2006"),
	)
	pdf.MultiCell(0, 7, tr(body), "", "J", false)
	pdf.Ln(6)
	pdf.MultiCell(0, 7, tr("La présente attestation est délivrée pour servir et valoir ce que de droit."), "", "L", false)
	pdf.Ln(20)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, tr("Établie le "+doc.GeneratedAt.Format("02/01/2006")), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	if doc.Signed {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, tr(doc.SignerName), "", 1, "R", false, 0, "")
		if doc.SignatureText != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, 6, tr(doc.SignatureText), "", 1, "R", false, 0, "")
		}
		if doc.SignatureImage != "" {
			img, err := decodeDataURL(doc.SignatureImage)
			if err != nil {
				return err
			}
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(signatureName, opts, bytes.NewReader(img))
			pdf.ImageOptions(signatureName, 140, pdf.GetY()+2, 50, 0, false, opts, 0, "")
		}
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetY(pdf.GetY() + 30)
		pdf.CellFormat(0, 6, tr("Signé électroniquement le "+doc.SignedAt.Format("02/01/2006 à 15:04")), "", 1, "R", false, 0, "")

		if doc.VerifyURL != "" {
			qrPNG, err := qrCodePNG(doc.VerifyURL)
			if err != nil {
				return err
			}
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(qrPNG))
			pdf.ImageOptions(qrImageName, 20, 240, 35, 35, false, opts, 0, "")
			pdf.SetXY(60, 250)
			pdf.SetFont("Helvetica", "", 8)
			pdf.MultiCell(130, 4, tr("Vérifiez l'authenticité de ce document en scannant le code QR."), "", "L", false)
		}
	} else {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 10, tr("DOCUMENT NON SIGNÉ"), "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.SetY(-20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 6, tr(doc.SiteName), "", 0, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
