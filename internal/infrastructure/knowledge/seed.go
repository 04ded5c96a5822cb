package knowledge

import "github.com/KH-Pua/ai-chatbot/internal/domain/entity"

// DefaultEntries is the built-in article set used when neither the
// database nor a knowledge file provides any.
func DefaultEntries() []*entity.KnowledgeEntry {
	return []*entity.KnowledgeEntry{
		{
			ID:       "1",
			Title:    "Return Policy",
			Category: entity.KnowledgePolicies,
			Content:  `We offer a 30-day return policy on most items. Products must be in original condition with all packaging and accessories. To initiate a return, log into your account, go to Order History, and select "Return Item". Refunds are processed within 5-7 business days after we receive the item.`,
		},
		{
			ID:       "2",
			Title:    "Shipping Information",
			Category: entity.KnowledgePolicies,
			Content:  "We offer free standard shipping on orders over $50. Standard shipping takes 5-7 business days. Express shipping (2-3 days) is available for $15. Orders placed before 2 PM EST ship the same day. You will receive a tracking number via email once your order ships.",
		},
		{
			ID:       "3",
			Title:    "Password Reset",
			Category: entity.KnowledgeTechnical,
			Content:  `To reset your password: 1) Go to the login page and click "Forgot Password". 2) Enter your email address. 3) Check your email for a reset link (check spam if not in inbox). 4) Click the link and create a new password. 5) Password must be at least 8 characters with one number and one special character. The reset link expires in 24 hours.`,
		},
		{
			ID:       "4",
			Title:    "Warranty Information",
			Category: entity.KnowledgePolicies,
			Content:  "All electronics come with a 1-year manufacturer warranty covering defects in materials and workmanship. Warranty does not cover accidental damage, water damage, or normal wear and tear. To claim warranty, contact our support team with your order number and description of the issue. Extended warranties are available for purchase at checkout.",
		},
		{
			ID:       "5",
			Title:    "Order Tracking",
			Category: entity.KnowledgeFAQ,
			Content:  "To track your order: 1) Log into your account and go to Order History. 2) Click on the order you want to track. 3) You will see the current status and tracking number. 4) Click the tracking number to see detailed shipping information. If your order shows as shipped but tracking hasn't updated in 24 hours, please contact us.",
		},
		{
			ID:       "6",
			Title:    "Payment Methods",
			Category: entity.KnowledgeBilling,
			Content:  "We accept Visa, Mastercard, American Express, Discover, PayPal, Apple Pay, and Google Pay. We also offer financing through Affirm for purchases over $200. All transactions are encrypted and secure. We do not store full credit card numbers.",
		},
		{
			ID:       "7",
			Title:    "Bluetooth Pairing Issues",
			Category: entity.KnowledgeTechnical,
			Content:  `If you are having trouble pairing a Bluetooth device: 1) Make sure Bluetooth is enabled on both devices. 2) Put the device in pairing mode (usually hold power button for 5 seconds until LED flashes). 3) On your phone/computer, scan for new devices. 4) Select the device from the list. 5) If prompted, enter PIN "0000" or "1234". 6) If it still won't pair, restart both devices and try again.`,
		},
		{
			ID:       "8",
			Title:    "Cancel Order",
			Category: entity.KnowledgeFAQ,
			Content:  `You can cancel an order before it ships. Log into your account, go to Order History, select the order, and click "Cancel Order". If the order has already shipped, you will need to refuse delivery or initiate a return once received. Cancellations are processed immediately and refunds take 3-5 business days.`,
		},
	}
}
